package validation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Rendered is a page as a browser saw it after scripts ran.
type Rendered struct {
	Status   int
	FinalURL string
	HTML     string
	Elapsed  time.Duration
}

// Renderer loads pages in a real browser.
type Renderer interface {
	Render(ctx context.Context, url string) (*Rendered, error)
	Close() error
}

// ChromeRenderer drives one headless Chrome shared by the whole run. The
// browser starts on first use; every render gets its own tab.
type ChromeRenderer struct {
	timeout   time.Duration
	idle      time.Duration
	idleCap   time.Duration
	userAgent string
	logger    *zap.Logger

	once          sync.Once
	startErr      error
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	closed        bool
	mu            sync.Mutex
}

// NewChromeRenderer creates a renderer; nothing is launched yet.
func NewChromeRenderer(timeout time.Duration, logger *zap.Logger) *ChromeRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &ChromeRenderer{
		timeout:   timeout,
		idle:      500 * time.Millisecond,
		idleCap:   10 * time.Second,
		userAgent: pickUserAgent(),
		logger:    logger.Named("browser"),
	}
}

func (c *ChromeRenderer) start() error {
	c.once.Do(func() {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(c.userAgent),
		)

		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx)

		// launch the browser now so failures surface once
		if err := chromedp.Run(browserCtx); err != nil {
			browserCancel()
			allocCancel()
			c.startErr = err
			c.logger.Warn("browser unavailable, rendering disabled", zap.Error(err))
			return
		}

		c.mu.Lock()
		c.browserCtx, c.allocCancel, c.browserCancel = browserCtx, allocCancel, browserCancel
		c.mu.Unlock()
		c.logger.Debug("browser started")
	})

	return c.startErr
}

// Render navigates to url in a fresh tab, waits for the network to go quiet
// and returns the resulting document.
func (c *ChromeRenderer) Render(ctx context.Context, url string) (*Rendered, error) {
	if err := c.start(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.New("renderer closed")
	}
	browserCtx := c.browserCtx
	c.mu.Unlock()

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, c.timeout)
	defer cancelTimeout()

	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	tracker := newNetworkTracker()
	chromedp.ListenTarget(tabCtx, tracker.observe)

	start := time.Now()
	var html, location string
	err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return tracker.waitIdle(ctx, c.idle, c.idleCap)
		}),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	status, docURL := tracker.document()
	if location == "" {
		location = docURL
	}

	return &Rendered{
		Status:   status,
		FinalURL: location,
		HTML:     html,
		Elapsed:  time.Since(start),
	}, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (c *ChromeRenderer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.browserCtx == nil {
		return nil
	}

	err := chromedp.Cancel(c.browserCtx)
	c.browserCancel()
	c.allocCancel()

	return err
}

// networkTracker follows in-flight requests of a tab and remembers the status
// of the main document response. Iframes load documents too; only the frame
// that issued the first document request counts.
type networkTracker struct {
	mu           sync.Mutex
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
	mainFrame    cdp.FrameID
	status       int
	docURL       string
}

func newNetworkTracker() *networkTracker {
	return &networkTracker{
		inflight:     make(map[network.RequestID]struct{}),
		lastActivity: time.Now(),
	}
}

func (t *networkTracker) observe(ev any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.inflight[e.RequestID] = struct{}{}
		t.lastActivity = time.Now()
		if t.mainFrame == "" && e.Type == network.ResourceTypeDocument {
			t.mainFrame = e.FrameID
		}
	case *network.EventResponseReceived:
		if e.Type != network.ResourceTypeDocument || e.Response == nil {
			return
		}
		if t.mainFrame == "" {
			t.mainFrame = e.FrameID
		}
		if e.FrameID == t.mainFrame {
			t.status = int(e.Response.Status)
			t.docURL = e.Response.URL
		}
	case *network.EventLoadingFinished:
		delete(t.inflight, e.RequestID)
		t.lastActivity = time.Now()
	case *network.EventLoadingFailed:
		delete(t.inflight, e.RequestID)
		t.lastActivity = time.Now()
	}
}

// waitIdle returns once no request has been in flight for quiet, or after
// limit has passed regardless.
func (t *networkTracker) waitIdle(ctx context.Context, quiet, limit time.Duration) error {
	deadline := time.Now().Add(limit)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		t.mu.Lock()
		idle := len(t.inflight) == 0 && time.Since(t.lastActivity) >= quiet
		t.mu.Unlock()

		if idle || time.Now().After(deadline) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (t *networkTracker) document() (int, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.status, t.docURL
}
