// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package decoder

// Config selects and configures the decoders a worker may use
type Config struct {
	FFmpeg FFmpegConfig
}

type router struct {
	config Config
	active Decoder
}

// New returns a decoder that picks its backend from the path on Open:
// synthetic sources are generated, anything else goes through ffmpeg.
func New(config Config) Decoder {
	return &router{config: config}
}

func (r *router) Open(path string) (int, error) {
	if r.active != nil {
		r.active.Close()
	}
	if IsSynthetic(path) {
		r.active = NewSynthetic()
	} else {
		r.active = NewFFmpeg(r.config.FFmpeg)
	}
	n, err := r.active.Open(path)
	if err != nil {
		r.active = nil
		return 0, err
	}
	return n, nil
}

func (r *router) ReadFrame(index int) (*Frame, error) {
	if r.active == nil {
		return nil, ErrNotOpen
	}
	return r.active.ReadFrame(index)
}

func (r *router) Resize(canvas Size, widthMultiplier float64) error {
	if r.active == nil {
		return ErrNotOpen
	}
	return r.active.Resize(canvas, widthMultiplier)
}

func (r *router) Close() error {
	if r.active == nil {
		return nil
	}
	err := r.active.Close()
	r.active = nil
	return err
}
