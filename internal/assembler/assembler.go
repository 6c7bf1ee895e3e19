package assembler

import (
	"bytes"
	"strings"
	"sync"

	"github.com/danmuck/sxmlstream/internal/xmltext"
)

// Config defines one assembler's framing and delivery policy.
type Config struct {
	// StartTag is the bare name of the outer message tag.
	StartTag string
	Mode     NotificationMode
	// MaxBufferSize caps buffered bytes; 0 means unlimited. The cap is
	// checked before a chunk is appended, so one chunk may overshoot it.
	MaxBufferSize int
}

func DefaultConfig() Config {
	return Config{Mode: NotifyOnly}
}

// Assembler slices complete <tag>...</tag> messages out of a chunked stream.
type Assembler struct {
	feedMu        sync.Mutex
	buf           []byte
	startTag      string
	openTag       []byte
	closeTag      []byte
	mode          NotificationMode
	maxBufferSize int

	queue    *Queue[string]
	observer Observer
}

type eventKind int

const (
	eventCompleted eventKind = iota
	eventReady
	eventParseError
)

type event struct {
	kind eventKind
	msg  string
	err  ParseError
}

// New builds an assembler. A nil observer discards push notifications.
func New(cfg Config, observer Observer) (*Assembler, error) {
	tag := strings.TrimSpace(xmltext.CleanTagName(cfg.StartTag))
	if tag == "" {
		return nil, ErrMissingStartTag
	}
	if observer == nil {
		observer = ObserverFuncs{}
	}
	maxSize := cfg.MaxBufferSize
	if maxSize < 0 {
		maxSize = 0
	}
	return &Assembler{
		startTag:      tag,
		openTag:       []byte("<" + tag + ">"),
		closeTag:      []byte("</" + tag + ">"),
		mode:          cfg.Mode,
		maxBufferSize: maxSize,
		queue:         NewQueue[string](),
		observer:      observer,
	}, nil
}

// AddData appends chunk and extracts every complete message now buffered.
// It returns MessageTooLarge when the chunk was dropped because the buffer
// already exceeded the configured cap.
func (a *Assembler) AddData(chunk string) error {
	a.feedMu.Lock()
	if a.maxBufferSize > 0 && len(a.buf) > a.maxBufferSize {
		a.feedMu.Unlock()
		a.observer.ParseError(MessageTooLarge)
		return MessageTooLarge
	}
	a.buf = append(a.buf, chunk...)
	events := a.extractLocked(nil)
	a.feedMu.Unlock()

	a.notify(events)
	return nil
}

func (a *Assembler) extractLocked(events []event) []event {
	for len(a.buf) > 0 {
		end := bytes.Index(a.buf, a.closeTag)
		if end < 0 {
			return events
		}
		stop := end + len(a.closeTag)
		start := bytes.Index(a.buf, a.openTag)
		if start >= 0 && start < end {
			msg := string(a.buf[start:stop])
			a.consumeLocked(stop)
			events = a.deliverLocked(msg, events)
			continue
		}
		// end tag with no start tag before it: drop through the end tag
		a.consumeLocked(stop)
		events = append(events, event{kind: eventParseError, err: EndTagNotMatched})
	}
	return events
}

func (a *Assembler) consumeLocked(n int) {
	rest := copy(a.buf, a.buf[n:])
	a.buf = a.buf[:rest]
}

func (a *Assembler) deliverLocked(msg string, events []event) []event {
	switch a.mode {
	case DispatchAndDiscard:
		return append(events, event{kind: eventReady, msg: msg})
	case Dispatch:
		a.queue.Push(msg)
		return append(events, event{kind: eventReady, msg: msg})
	case NotifyAndDispatch:
		a.queue.Push(msg)
		return append(events,
			event{kind: eventCompleted},
			event{kind: eventReady, msg: msg},
		)
	default:
		a.queue.Push(msg)
		return append(events, event{kind: eventCompleted})
	}
}

func (a *Assembler) notify(events []event) {
	for _, ev := range events {
		switch ev.kind {
		case eventCompleted:
			a.observer.MessageCompleted()
		case eventReady:
			a.observer.MessageReady(ev.msg)
		case eventParseError:
			a.observer.ParseError(ev.err)
		}
	}
}

// NextMessage pops the oldest pending message. ok is false when none is
// pending and msg is then empty.
func (a *Assembler) NextMessage() (msg string, ok bool) {
	return a.queue.Pop()
}

func (a *Assembler) HasPendingMessages() bool {
	return a.queue.Len() > 0
}

func (a *Assembler) PendingCount() int {
	return a.queue.Len()
}

// EmptyBuffer drops any partially received data.
func (a *Assembler) EmptyBuffer() {
	a.feedMu.Lock()
	defer a.feedMu.Unlock()
	a.buf = a.buf[:0]
}

func (a *Assembler) CurrentBuffer() string {
	a.feedMu.Lock()
	defer a.feedMu.Unlock()
	return string(a.buf)
}

func (a *Assembler) BufferLen() int {
	a.feedMu.Lock()
	defer a.feedMu.Unlock()
	return len(a.buf)
}

func (a *Assembler) MaxBufferSize() int {
	a.feedMu.Lock()
	defer a.feedMu.Unlock()
	return a.maxBufferSize
}

// SetMaxBufferSize sets the cap in bytes; 0 disables it and negative
// values are ignored.
func (a *Assembler) SetMaxBufferSize(n int) {
	if n < 0 {
		return
	}
	a.feedMu.Lock()
	defer a.feedMu.Unlock()
	a.maxBufferSize = n
}

func (a *Assembler) StartTag() string {
	return a.startTag
}

func (a *Assembler) Mode() NotificationMode {
	a.feedMu.Lock()
	defer a.feedMu.Unlock()
	return a.mode
}

func (a *Assembler) SetMode(mode NotificationMode) {
	a.feedMu.Lock()
	defer a.feedMu.Unlock()
	a.mode = mode
}
