package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewRejectsInterval(t *testing.T) {
	if _, err := New(Options{}, zerolog.Nop()); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("零间隔应返回 ErrInvalidInterval, 实际 %v", err)
	}
}

func TestNextTickAligned(t *testing.T) {
	s, err := New(Options{Interval: 15 * time.Minute, AlignToBucket: true}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 3, 1, 10, 7, 30, 0, time.UTC)
	want := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	if got := s.NextTick(now); !got.Equal(want) {
		t.Fatalf("对齐后的下一次触发时间应为 %s, 实际 %s", want, got)
	}

	onBoundary := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	if got := s.NextTick(onBoundary); !got.Equal(onBoundary.Add(15 * time.Minute)) {
		t.Fatalf("边界时刻应跳到下一个区间, 实际 %s", got)
	}
	if got := s.BucketStart(now); !got.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("bucket 起点不正确: %s", got)
	}
}

func TestNextTickUnaligned(t *testing.T) {
	s, err := New(Options{Interval: time.Minute}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 3, 1, 10, 7, 30, 0, time.UTC)
	if got := s.NextTick(now); !got.Equal(now.Add(time.Minute)) {
		t.Fatalf("未对齐时应为 now+interval, 实际 %s", got)
	}
	if got := s.BucketStart(now); !got.Equal(now) {
		t.Fatalf("未对齐时 bucket 即触发时间, 实际 %s", got)
	}
}

func TestRunOnStartAndCancel(t *testing.T) {
	s, err := New(Options{Interval: time.Hour, RunOnStart: true}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ticks := 0
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(context.Context, time.Time) error {
			ticks++
			cancel()
			return errors.New("tick failure is logged only")
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("取消后应返回 context.Canceled, 实际 %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run 未在取消后退出")
	}
	if ticks != 1 {
		t.Fatalf("RunOnStart 应立即执行一次, 实际 %d", ticks)
	}
}
