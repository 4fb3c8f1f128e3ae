// Package alert reacts to HIGH classifications: an audible alarm, a
// self-clearing visual highlight and optional e-mail and hook notifications.
package alert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"
)

// ErrAudioUnavailable is returned when no audio output can be produced.
var ErrAudioUnavailable = errors.New("audio unavailable")

// Tone is one square-wave beep scheduled relative to the start of a pattern.
type Tone struct {
	Freq     int
	Start    time.Duration
	Duration time.Duration
}

// AlarmTones is the rising three-tone alarm.
var AlarmTones = []Tone{
	{Freq: 1000, Start: 0, Duration: 200 * time.Millisecond},
	{Freq: 1200, Start: 250 * time.Millisecond, Duration: 200 * time.Millisecond},
	{Freq: 1400, Start: 500 * time.Millisecond, Duration: 300 * time.Millisecond},
}

// FallbackTones is the single tone played when the alarm pattern fails.
var FallbackTones = []Tone{
	{Freq: 1000, Start: 0, Duration: 500 * time.Millisecond},
}

// Beeper plays a tone pattern, blocking until it finishes.
type Beeper interface {
	Play(ctx context.Context, tones []Tone) error
}

// schedule waits until each tone's start offset and calls play for it.
func schedule(ctx context.Context, tones []Tone, play func(Tone) error) error {
	begin := time.Now()
	for _, t := range tones {
		if wait := t.Start - time.Since(begin); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err := play(t); err != nil {
			return err
		}
	}
	return nil
}

// CommandBeeper drives the Linux "beep" utility, which honours frequency and length.
type CommandBeeper struct {
	path string
}

// NewCommandBeeper locates the beep binary on PATH.
func NewCommandBeeper() (*CommandBeeper, error) {
	path, err := exec.LookPath("beep")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
	}
	return &CommandBeeper{path: path}, nil
}

func (b *CommandBeeper) Play(ctx context.Context, tones []Tone) error {
	return schedule(ctx, tones, func(t Tone) error {
		cmd := exec.CommandContext(ctx, b.path,
			"-f", strconv.Itoa(t.Freq),
			"-l", strconv.FormatInt(t.Duration.Milliseconds(), 10))
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
		}
		return nil
	})
}

// BellBeeper rings the terminal bell once per tone. Frequencies are ignored.
type BellBeeper struct {
	w io.Writer
}

func NewBellBeeper(w io.Writer) *BellBeeper {
	return &BellBeeper{w: w}
}

func (b *BellBeeper) Play(ctx context.Context, tones []Tone) error {
	if b.w == nil {
		return ErrAudioUnavailable
	}
	return schedule(ctx, tones, func(Tone) error {
		if _, err := io.WriteString(b.w, "\a"); err != nil {
			return fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
		}
		return nil
	})
}

// NewSystemBeeper prefers the beep utility and falls back to the terminal bell.
func NewSystemBeeper(w io.Writer) Beeper {
	if b, err := NewCommandBeeper(); err == nil {
		return b
	}
	return NewBellBeeper(w)
}
