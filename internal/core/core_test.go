package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDir(t *testing.T) {
	assert.Equal(t, `C:\Program Files\Acme`, Dir(`C:\Program Files\Acme\acme.exe`))
	assert.Equal(t, `C:\`, Dir(`C:\acme.exe`))
	assert.Equal(t, `C:\Program Files`, Dir(`C:\Program Files\Acme\`))
	assert.Equal(t, "/opt", Dir("/opt/acme"))
	assert.Equal(t, "/", Dir("/acme"))
	assert.Equal(t, "", Dir("acme.exe"))
}

func TestBase(t *testing.T) {
	assert.Equal(t, "acme.exe", Base(`C:\Program Files\Acme\acme.exe`))
	assert.Equal(t, "Acme", Base(`C:\Program Files\Acme\`))
	assert.Equal(t, "acme", Base("acme"))
}

func TestCleanPath(t *testing.T) {
	assert.Equal(t, `C:\Program Files\Acme`, CleanPath(` "C:\Program Files\Acme\" `))
	assert.Equal(t, `C:\`, CleanPath(`C:\`))
}

func TestDeadline(t *testing.T) {
	var zero Deadline
	assert.True(t, zero.IsZero())
	assert.False(t, zero.Expired())
	assert.Greater(t, zero.Remaining(), time.Hour)

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := now
	d := DeadlineAt(now.Add(time.Minute), func() time.Time { return clock })
	assert.False(t, d.Expired())
	assert.Equal(t, time.Minute, d.Remaining())

	clock = now.Add(2 * time.Minute)
	assert.True(t, d.Expired())
	assert.Zero(t, d.Remaining())

	assert.True(t, NewDeadline(0).IsZero())
	assert.False(t, NewDeadline(time.Hour).IsZero())
}

func TestDeadlineBound(t *testing.T) {
	d := NewDeadline(time.Hour)
	ctx, cancel := d.Bound(context.Background(), time.Second)
	defer cancel()
	dl, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), dl, 500*time.Millisecond)

	var unbounded Deadline
	ctx2, cancel2 := unbounded.Bound(context.Background(), 0)
	defer cancel2()
	_, ok = ctx2.Deadline()
	assert.False(t, ok)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.5 KB", FormatSize(1536))
	assert.Equal(t, "2.0 GB", FormatSize(2<<30))
}

func TestFormatWindowsVersion(t *testing.T) {
	assert.Equal(t, "Windows 11 (Build 22631)", FormatWindowsVersion(10, 0, 22631))
	assert.Equal(t, "Windows 10 (Build 19045)", FormatWindowsVersion(10, 0, 19045))
	assert.Equal(t, "Windows 8.1 (Build 9600)", FormatWindowsVersion(6, 3, 9600))
	assert.Equal(t, "Windows 6.0 (Build 6002)", FormatWindowsVersion(6, 0, 6002))
}
