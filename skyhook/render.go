package skyhook

type RenderOptions struct {
	Color [3]uint8
	// Half-thickness of the box outline, see DrawRectangle.
	Thickness int
	// Draw Detection.Label() above each box.
	Labels bool
	// Vertical offset of the label baseline above the box top.
	LabelOffset int
	// Fill black behind each label.
	Backdrop bool
}

var DefaultRenderOptions = RenderOptions{
	Color:       Green,
	Thickness:   1,
	Labels:      true,
	LabelOffset: 10,
	Backdrop:    true,
}

// RenderDetections draws onto a copy of canvas and returns it.
func RenderDetections(canvas Image, detections []Detection, opts RenderOptions) Image {
	canvas = canvas.Copy()
	for _, d := range detections {
		canvas.DrawRectangle(d.Left, d.Top, d.Right, d.Bottom, opts.Thickness, opts.Color)
		if opts.Labels {
			canvas.DrawText(RichText{
				Text:     d.Label(),
				X:        d.Left,
				Y:        d.Top - opts.LabelOffset,
				Color:    opts.Color,
				Backdrop: opts.Backdrop,
			})
		}
	}
	return canvas
}
