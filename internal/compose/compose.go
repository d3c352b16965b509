// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

// Package compose merges a left and a right frame into one picture:
// a vertical split ("curtain"), side by side or a chess pattern, scaled to
// the canvas and with an optional block of text drawn on top.
package compose

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/ZSC714725/pairview/internal/decoder"
	"github.com/ZSC714725/pairview/internal/engine"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	ErrNoFrames    = errors.New("compose: no frames")
	ErrShortFrame  = errors.New("compose: frame buffer shorter than its size")
	ErrUnknownMode = errors.New("compose: unknown mode")
)

const (
	splitFraction = 0.5
	chessCell     = 0.25
)

// Composer implements engine.Composer
type Composer struct {
	FontColor color.RGBA
	// FontLocation is the relative (y, x) position of the text block
	FontLocation [2]float64
	Face         font.Face
}

// New creates a composer drawing text in fontColor at location
func New(fontColor [3]uint8, location [2]float64) *Composer {
	return &Composer{
		FontColor:    color.RGBA{R: fontColor[0], G: fontColor[1], B: fontColor[2], A: 0xff},
		FontLocation: location,
		Face:         basicfont.Face7x13,
	}
}

// Compose merges left and right. A nil frame is drawn black at the size
// of the other one; a right frame of a different size is scaled to the
// left one.
func (c *Composer) Compose(left, right *decoder.Frame, spec engine.CombineSpec) (image.Image, error) {
	if left == nil && right == nil {
		return nil, ErrNoFrames
	}

	var l, r *image.RGBA
	var err error
	if left != nil {
		if l, err = FrameImage(left); err != nil {
			return nil, err
		}
	}
	if right != nil {
		if r, err = FrameImage(right); err != nil {
			return nil, err
		}
	}
	switch {
	case l == nil:
		l = image.NewRGBA(r.Bounds())
		fill(l, color.Black)
	case r == nil:
		r = image.NewRGBA(l.Bounds())
		fill(r, color.Black)
	case r.Bounds().Size() != l.Bounds().Size():
		r = scale(r, l.Bounds().Size())
	}

	var merged *image.RGBA
	switch spec.Mode {
	case engine.ModeSplit, "":
		merged = split(l, r, splitFraction)
	case engine.ModeSBS:
		merged = sideBySide(l, r)
	case engine.ModeChess:
		merged = chess(l, r, chessCell)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, spec.Mode)
	}

	if !spec.Canvas.IsZero() {
		merged = fit(merged, spec.Canvas)
	}
	if len(spec.Overlay) > 0 {
		c.drawText(merged, spec.Overlay)
	}
	return merged, nil
}

// Blank is a black picture of size, used when there is nothing to show
func Blank(size decoder.Size) *image.RGBA {
	if size.IsZero() {
		size = decoder.Size{W: 1, H: 1}
	}
	img := image.NewRGBA(image.Rect(0, 0, size.W, size.H))
	fill(img, color.Black)
	return img
}

// FrameImage converts an rgb24 frame
func FrameImage(f *decoder.Frame) (*image.RGBA, error) {
	if f.Width <= 0 || f.Height <= 0 || len(f.Pix) < f.Width*f.Height*3 {
		return nil, fmt.Errorf("%w: %dx%d with %d bytes", ErrShortFrame, f.Width, f.Height, len(f.Pix))
	}
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i < f.Width*f.Height*3; i, j = i+3, j+4 {
		img.Pix[j] = f.Pix[i]
		img.Pix[j+1] = f.Pix[i+1]
		img.Pix[j+2] = f.Pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img, nil
}

func fill(img *image.RGBA, c color.Color) {
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

func scale(src *image.RGBA, size image.Point) *image.RGBA {
	dst := image.NewRGBA(image.Rectangle{Max: size})
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// fit scales img to the largest size that fits canvas keeping aspect
func fit(img *image.RGBA, canvas decoder.Size) *image.RGBA {
	b := img.Bounds().Size()
	coeff := float64(canvas.W) / float64(b.X)
	if c := float64(canvas.H) / float64(b.Y); c < coeff {
		coeff = c
	}
	size := image.Pt(int(float64(b.X)*coeff), int(float64(b.Y)*coeff))
	if size.X < 1 || size.Y < 1 || size == b {
		return img
	}
	return scale(img, size)
}

// split takes the first fraction of the columns from l and the rest from r
func split(l, r *image.RGBA, fraction float64) *image.RGBA {
	b := l.Bounds()
	out := image.NewRGBA(b)
	threshold := int(fraction * float64(b.Dx()))
	draw.Draw(out, b, r, b.Min, draw.Src)
	draw.Draw(out, image.Rect(b.Min.X, b.Min.Y, b.Min.X+threshold, b.Max.Y), l, b.Min, draw.Src)
	return out
}

func sideBySide(l, r *image.RGBA) *image.RGBA {
	b := l.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, 2*b.Dx(), b.Dy()))
	draw.Draw(out, image.Rect(0, 0, b.Dx(), b.Dy()), l, b.Min, draw.Src)
	draw.Draw(out, image.Rect(b.Dx(), 0, 2*b.Dx(), b.Dy()), r, b.Min, draw.Src)
	return out
}

// chess alternates square cells of l and r, the cell side being a
// fraction of the shorter frame side
func chess(l, r *image.RGBA, fraction float64) *image.RGBA {
	b := l.Bounds()
	short := b.Dx()
	if b.Dy() < short {
		short = b.Dy()
	}
	cell := int(fraction * float64(short))
	if cell < 1 {
		cell = 1
	}

	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y += cell {
		for x := b.Min.X; x < b.Max.X; x += cell {
			src := l
			if ((x-b.Min.X)/cell+(y-b.Min.Y)/cell)%2 == 1 {
				src = r
			}
			rect := image.Rect(x, y, x+cell, y+cell).Intersect(b)
			draw.Draw(out, rect, src, rect.Min, draw.Src)
		}
	}
	return out
}

func (c *Composer) drawText(img *image.RGBA, lines []string) {
	face := c.Face
	if face == nil {
		face = basicfont.Face7x13
	}
	d := &font.Drawer{Dst: img, Src: image.NewUniform(c.FontColor), Face: face}

	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	widths := make([]int, len(lines))
	blockW := 0
	for i, line := range lines {
		widths[i] = d.MeasureString(line).Ceil()
		if widths[i] > blockW {
			blockW = widths[i]
		}
	}
	blockH := lineHeight * len(lines)

	size := img.Bounds().Size()
	x0 := int(float64(max(size.X-blockW+1, 1)) * c.FontLocation[1])
	y0 := int(float64(max(size.Y-blockH+1, 1)) * c.FontLocation[0])

	for i, line := range lines {
		x := x0
		switch {
		case c.FontLocation[1] > 0.75:
			x += blockW - widths[i]
		case c.FontLocation[1] >= 0.25:
			x += (blockW - widths[i]) / 2
		}
		d.Dot = fixed.P(x, y0+i*lineHeight+metrics.Ascent.Ceil())
		d.DrawString(line)
	}
}
