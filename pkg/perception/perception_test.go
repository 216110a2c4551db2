package perception

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/driver/mock"
)

func TestCapture(t *testing.T) {
	dev := mock.New(mock.Config{Width: 1080, Height: 2340}, mock.FeedScreen(1204))
	a := New(dev, time.Second, nil)

	snap, err := a.Capture(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1080, snap.Width)
	assert.Equal(t, 2340, snap.Height)
	assert.NotEmpty(t, snap.Screenshot)
	assert.NotNil(t, snap.Tree.Find(func(e *core.Element) bool { return e.Text == "Like" }))
	assert.False(t, snap.CapturedAt.IsZero())
}

func TestCapture_FreshSnapshotEachCall(t *testing.T) {
	dev := mock.New(mock.Config{}, mock.FeedScreen(1))
	a := New(dev, 0, nil)

	first, err := a.Capture(context.Background())
	require.NoError(t, err)
	dev.SetScreen(mock.FeedScreen(2))
	second, err := a.Capture(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, first.Tree, second.Tree)
	assert.Contains(t, first.Tree.Raw, `text="1"`)
	assert.Contains(t, second.Tree.Raw, `text="2"`)
}

func TestCapture_HierarchyTransportError(t *testing.T) {
	dev := mock.New(mock.Config{}, mock.FeedScreen(1))
	dev.FailTransport("hierarchy")

	_, err := New(dev, 0, nil).Capture(context.Background())
	assert.True(t, errors.Is(err, core.ErrTransport))
}

func TestCapture_ScreenshotErrorTolerated(t *testing.T) {
	dev := mock.New(mock.Config{}, mock.FeedScreen(1))
	dev.Fail("screenshot", errors.New("secure window"))

	snap, err := New(dev, 0, nil).Capture(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Screenshot)
	assert.Greater(t, snap.Tree.Len(), 0)
}

func TestCapture_MalformedHierarchy(t *testing.T) {
	dev := mock.New(mock.Config{}, "<hierarchy><broken")
	_, err := New(dev, 0, nil).Capture(context.Background())
	assert.Error(t, err)
}
