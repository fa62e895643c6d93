package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// ExecRecorder captures microphone audio by running an external recording
// command (sox's "rec", arecord, ffmpeg) that writes raw s16le PCM to stdout.
// The command is started on Start and interrupted on Stop; whatever PCM it
// wrote in between becomes the recording.
type ExecRecorder struct {
	command    string
	args       []string
	sampleRate int

	mu   sync.Mutex
	cmd  *exec.Cmd
	buf  *bytes.Buffer
	done chan error
}

// RecorderOption is a functional option for ExecRecorder.
type RecorderOption func(*ExecRecorder)

// WithRecorderSampleRate sets the sample rate of the PCM produced by the
// recording command. Defaults to [SampleRate].
func WithRecorderSampleRate(rate int) RecorderOption {
	return func(r *ExecRecorder) {
		r.sampleRate = rate
	}
}

// NewExecRecorder creates a recorder that runs command with args on each
// Start. The command must write raw s16le mono PCM to stdout until it
// receives SIGINT. command must not be empty.
func NewExecRecorder(command string, args []string, opts ...RecorderOption) (*ExecRecorder, error) {
	if command == "" {
		return nil, errors.New("audio: recorder command must not be empty")
	}
	r := &ExecRecorder{
		command:    command,
		args:       args,
		sampleRate: SampleRate,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Start launches the recording command. Returns an error if a recording is
// already active or the command cannot be started.
func (r *ExecRecorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil {
		return errors.New("audio: recording already in progress")
	}

	cmd := exec.CommandContext(ctx, r.command, r.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("audio: recorder stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("audio: start recorder %q: %w", r.command, err)
	}

	buf := &bytes.Buffer{}
	done := make(chan error, 1)
	go func() {
		_, copyErr := io.Copy(buf, stdout)
		waitErr := cmd.Wait()
		if copyErr != nil {
			done <- copyErr
			return
		}
		done <- waitErr
	}()

	r.cmd = cmd
	r.buf = buf
	r.done = done
	return nil
}

// Stop interrupts the recording command and returns the captured audio as a
// WAV buffer. Returns an error if no recording is active.
func (r *ExecRecorder) Stop() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd == nil {
		return nil, errors.New("audio: no recording in progress")
	}
	cmd, buf, done := r.cmd, r.buf, r.done
	r.cmd, r.buf, r.done = nil, nil, nil

	// SIGINT lets sox/arecord finalise their output; kill as a fallback.
	_ = cmd.Process.Signal(os.Interrupt)
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		_ = cmd.Process.Kill()
		<-done
	}

	// The recorder exiting non-zero after an interrupt is normal; the PCM
	// gathered so far is still the recording.
	return EncodeWAV(buf.Bytes(), r.sampleRate, Channels), nil
}

// ExecPlayer plays PCM audio by piping it into an external playback command
// (sox's "play", aplay, ffplay) via stdin.
type ExecPlayer struct {
	command string
	args    []string
}

// NewExecPlayer creates a player that runs command with args for each Play
// call. The command must read raw s16le mono PCM at [SampleRate] Hz from
// stdin. command must not be empty.
func NewExecPlayer(command string, args []string) (*ExecPlayer, error) {
	if command == "" {
		return nil, errors.New("audio: player command must not be empty")
	}
	return &ExecPlayer{command: command, args: args}, nil
}

// Play writes pcm to the playback command's stdin and blocks until the
// command exits or ctx is cancelled.
func (p *ExecPlayer) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	cmd := exec.CommandContext(ctx, p.command, p.args...)
	cmd.Stdin = bytes.NewReader(pcm)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("audio: play via %q: %w", p.command, err)
	}
	return nil
}
