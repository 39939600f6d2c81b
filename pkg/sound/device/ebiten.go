// Package device plays samples on the host audio device through ebiten.
package device

import (
	"fmt"
	"io"
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
	"github.com/james-see/notesampler/pkg/sound"
	"go.uber.org/zap"
)

var _ sound.Backend = (*EbitenBackend)(nil)

var (
	audioContextOnce sync.Once
	audioContext     *audio.Context
	audioSampleRate  int
)

// ebiten allows a single audio context per process.
func sharedAudioContext(sampleRate int) (*audio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = audio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// EbitenBackend plays samples on the default audio device. WAV files are
// resampled to the context rate when decoded.
type EbitenBackend struct {
	mu         sync.Mutex
	ctx        *audio.Context
	sampleRate int
	players    []*audio.Player
	log        *zap.Logger
}

// NewEbitenBackend opens the audio device at sampleRate.
func NewEbitenBackend(sampleRate int, log *zap.Logger) (*EbitenBackend, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &EbitenBackend{ctx: ctx, sampleRate: sampleRate, log: log}, nil
}

func (b *EbitenBackend) Decode(r io.Reader) ([]byte, error) {
	stream, err := wav.DecodeWithSampleRate(b.sampleRate, r)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(stream)
}

// Play starts pcm and drops players that have finished.
func (b *EbitenBackend) Play(pcm []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := b.ctx.NewPlayerFromBytes(pcm)
	p.Play()

	live := b.players[:0]
	for _, old := range b.players {
		if old.IsPlaying() {
			live = append(live, old)
			continue
		}
		_ = old.Close()
	}
	b.players = append(live, p)
	return nil
}

// Playing returns the number of voices still sounding.
func (b *EbitenBackend) Playing() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, p := range b.players {
		if p.IsPlaying() {
			n++
		}
	}
	return n
}

func (b *EbitenBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.players {
		p.Pause()
		_ = p.Close()
	}
	b.players = nil
	return nil
}
