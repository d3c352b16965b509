// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package worker

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ZSC714725/pairview/internal/decoder"
	"github.com/ZSC714725/pairview/internal/logger"
)

// Transport moves requests into and replies out of a worker
type Transport interface {
	Recv() (Request, error)
	Send(Reply) error
}

// Serve opens source and answers requests one at a time until quit, until
// ctx is done or the transport closes.
//
// An open failure is reported once as a CmdOpen reply and then Serve
// returns. Failures and panics of single commands are replied as values
// and do not stop the loop.
func Serve(ctx context.Context, dec decoder.Decoder, source string, t Transport, log logger.Logger) error {
	log = logger.OrNop(log)
	defer dec.Close()

	length, err := open(dec, source)
	if err != nil {
		log.Error("open %s: %v", source, err)
		if sendErr := t.Send(Reply{Name: CmdOpen, Args: Args{Path: source}, Failure: err}); sendErr != nil {
			return fmt.Errorf("report open failure: %w", sendErr)
		}
		return err
	}
	log.Debug("opened %s (%d frames)", source, length)

	for {
		if ctx.Err() != nil {
			return nil
		}
		req, err := t.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
		if req.Name == CmdQuit {
			log.Debug("quit")
			return nil
		}

		rep := handle(dec, length, req)
		if rep.Failure != nil {
			log.Error("%s %+v: %v", req.Name, req.Args, rep.Failure)
		}
		if err := t.Send(rep); err != nil {
			return fmt.Errorf("send %s: %w", req.Name, err)
		}
	}
}

func open(dec decoder.Decoder, source string) (n int, f *Failure) {
	defer func() {
		if r := recover(); r != nil {
			f = &Failure{Op: CmdOpen, Message: fmt.Sprint(r), Panic: true}
		}
	}()
	if source == "" {
		return 0, fail(CmdOpen, ErrNoSource)
	}
	n, err := dec.Open(source)
	if err != nil {
		return 0, fail(CmdOpen, err)
	}
	return n, nil
}

func handle(dec decoder.Decoder, length int, req Request) (rep Reply) {
	rep = Reply{Name: req.Name, Args: req.Args}
	defer func() {
		if r := recover(); r != nil {
			rep.Value = Value{}
			rep.Failure = &Failure{Op: req.Name, Message: fmt.Sprint(r), Panic: true}
		}
	}()

	switch req.Name {
	case CmdLength:
		rep.Value.Length = length
	case CmdReadFrame:
		frame, err := dec.ReadFrame(req.Args.Index)
		if err != nil {
			rep.Failure = fail(req.Name, err)
			return rep
		}
		rep.Value.Frame = frame
	case CmdResize:
		if err := dec.Resize(req.Args.Canvas, req.Args.WidthMultiplier); err != nil {
			rep.Failure = fail(req.Name, err)
		}
	default:
		rep.Failure = fail(req.Name, ErrUnknownCmd)
	}
	return rep
}

// ServeStdio is the entry point of a worker child process
func ServeStdio(ctx context.Context, dec decoder.Decoder, source string, stdin io.Reader, stdout io.Writer, log logger.Logger) error {
	return Serve(ctx, dec, source, connTransport{conn: NewConn(stdin, stdout)}, log)
}
