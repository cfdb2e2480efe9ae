// Package conversation models an interactive question-and-answer session
// over a single uploaded document: one in-flight question at a time, a
// placeholder message while the answer is pending, and a dismissable alert
// when retrieval finds nothing relevant.
package conversation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// State reports whether a question is currently in flight.
type State int

const (
	StateIdle State = iota
	StateLoading
)

var (
	// ErrBusy is returned when a question is submitted while another is
	// still being answered.
	ErrBusy = errors.New("conversation: question already in flight")

	// ErrNoRelevantContext signals that retrieval found nothing relevant
	// for the question. Askers return it to trigger the miss flow.
	ErrNoRelevantContext = errors.New("no relevant context found")
)

const (
	placeholderText = "I'm analyzing the document to find an answer to your question..."
	missMessageText = "Sorry, I couldn't find relevant information in the document to answer your question. Try asking something else."
	missAlertText   = "No relevant information found in the document. Try rephrasing your question or ask about a different topic."
	noDocumentText  = "Sorry, no document has been uploaded yet."
	erroredText     = "Sorry, something went wrong while answering your question. Please try again."
)

// Outcome classifies how a submitted question ended up.
type Outcome int

const (
	// OutcomeNone means the question never ran (no document uploaded).
	OutcomeNone Outcome = iota
	// OutcomeResolved means a grounded answer replaced the placeholder.
	OutcomeResolved
	// OutcomeMiss means retrieval found no relevant context.
	OutcomeMiss
	// OutcomeErrored means the ask failed for a reason other than a miss.
	OutcomeErrored
)

// Message is one entry in the transcript.
type Message struct {
	ID        int64
	Text      string
	Sender    Sender
	Timestamp time.Time
}

// Asker answers a question against a document. It returns
// ErrNoRelevantContext (possibly wrapped) when nothing relevant exists.
type Asker interface {
	Ask(ctx context.Context, question, documentID string) (string, error)
}

// Conversation is a transcript plus the state needed to serialize
// questions. Methods are safe for concurrent use; the lock is released
// while the Asker runs so accessors stay responsive during a slow answer.
type Conversation struct {
	asker Asker

	mu         sync.Mutex
	documentID string
	messages   []Message
	alert      string
	state      State
	nextID     int64
	now        func() time.Time
}

// New creates an empty conversation backed by asker.
func New(asker Asker) *Conversation {
	return &Conversation{asker: asker, nextID: 1, now: time.Now}
}

// SetDocument binds the conversation to a document id. An empty id means no
// document is uploaded yet.
func (c *Conversation) SetDocument(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.documentID = id
}

// DocumentID returns the currently bound document id.
func (c *Conversation) DocumentID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.documentID
}

// Messages returns a copy of the transcript in insertion order.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Alert returns the current alert text, or "" when none is showing.
func (c *Conversation) Alert() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alert
}

// DismissAlert clears the alert without touching the transcript.
func (c *Conversation) DismissAlert() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alert = ""
}

// State reports whether a question is in flight.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submit records the question, shows a placeholder assistant message, asks
// the backend, and replaces the placeholder in place with the result.
// Submitting while another question is in flight returns ErrBusy without
// touching the transcript. Submitting with no document bound records a
// fixed "no document" exchange and returns OutcomeNone.
func (c *Conversation) Submit(ctx context.Context, question string) (Outcome, error) {
	c.mu.Lock()
	if c.state == StateLoading {
		c.mu.Unlock()
		return OutcomeNone, ErrBusy
	}
	c.alert = ""
	c.append(question, SenderUser)

	if c.documentID == "" {
		c.append(noDocumentText, SenderAssistant)
		c.mu.Unlock()
		return OutcomeNone, nil
	}

	c.state = StateLoading
	placeholderID := c.append(placeholderText, SenderAssistant)
	docID := c.documentID
	c.mu.Unlock()

	answer, err := c.asker.Ask(ctx, question, docID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle

	switch {
	case err == nil:
		c.replace(placeholderID, answer)
		return OutcomeResolved, nil
	case errors.Is(err, ErrNoRelevantContext):
		c.replace(placeholderID, missMessageText)
		c.alert = missAlertText
		return OutcomeMiss, nil
	default:
		c.replace(placeholderID, erroredText)
		return OutcomeErrored, err
	}
}

// append adds a message and returns its id. Caller holds the lock.
func (c *Conversation) append(text string, sender Sender) int64 {
	id := c.nextID
	c.nextID++
	c.messages = append(c.messages, Message{
		ID:        id,
		Text:      text,
		Sender:    sender,
		Timestamp: c.now(),
	})
	return id
}

// replace swaps the text of the message with the given id, keeping its
// position but assigning a fresh id and timestamp. Caller holds the lock.
func (c *Conversation) replace(id int64, text string) {
	for i := range c.messages {
		if c.messages[i].ID == id {
			c.messages[i].ID = c.nextID
			c.nextID++
			c.messages[i].Text = text
			c.messages[i].Timestamp = c.now()
			return
		}
	}
}
