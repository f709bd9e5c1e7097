// ABOUTME: Transport-free request handlers tying sessions, the auth gate and the stores together
// ABOUTME: Each handler returns a Result the HTTP layer turns into a response

package cms

import (
	"errors"
	"log/slog"

	"github.com/2389/folio/internal/auth"
	"github.com/2389/folio/internal/markdown"
)

// Handler errors carried on Result.Err for recovered cases
var (
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPermissionDenied   = errors.New("permission denied")
)

// Status classifies a handler outcome.
type Status int

const (
	// StatusOK renders a page or body.
	StatusOK Status = iota
	// StatusValidationFailure re-renders a form with a message.
	StatusValidationFailure
	// StatusRedirect sends the client to Location.
	StatusRedirect
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusValidationFailure:
		return "validation-failure"
	case StatusRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Page names understood by the HTTP layer
const (
	PageIndex    = "index"
	PageDocument = "document"
	PageNew      = "new"
	PageEdit     = "edit"
	PageLogin    = "login"
	PageSignup   = "signup"
)

// Content types
const (
	ContentTypeHTML  = "text/html; charset=utf-8"
	ContentTypePlain = "text/plain; charset=utf-8"
)

// ListLocation is the document listing, where most handlers redirect.
const ListLocation = "/"

// Result is what a handler asks the transport to do.
type Result struct {
	Status Status

	// Page and Data are set for pages rendered through templates.
	Page string
	Data any

	// Location is set for StatusRedirect.
	Location string

	// ContentType and Body are set when the handler produced the body itself.
	ContentType string
	Body        []byte

	// Message is the validation message for StatusValidationFailure.
	Message string

	// Err records which recovered error led to this result, if any.
	Err error
}

// IndexData backs the document listing.
type IndexData struct {
	Documents []string
}

// DocumentData backs a rendered markdown document.
type DocumentData struct {
	Name string
	HTML string
}

// DocumentFormData backs the new and edit forms.
type DocumentFormData struct {
	Name    string
	Content string
}

// UserFormData backs the login and signup forms.
type UserFormData struct {
	Username string
}

// Recorder receives outcome counts. A nil Recorder is allowed.
type Recorder interface {
	RecordDocumentOp(op, outcome string)
	RecordLogin(outcome string)
	RecordSignup(outcome string)
}

// Service holds the collaborators every handler needs.
type Service struct {
	docs     DocumentStore
	creds    CredentialStore
	gate     auth.Gate
	renderer markdown.Renderer
	recorder Recorder
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// New creates a Service.
func New(docs DocumentStore, creds CredentialStore, gate auth.Gate, renderer markdown.Renderer, opts ...Option) *Service {
	s := &Service{
		docs:     docs,
		creds:    creds,
		gate:     gate,
		renderer: renderer,
		logger:   slog.Default().With("component", "cms"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) recordDocumentOp(op, outcome string) {
	if s.recorder != nil {
		s.recorder.RecordDocumentOp(op, outcome)
	}
}

func (s *Service) recordLogin(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordLogin(outcome)
	}
}

func (s *Service) recordSignup(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordSignup(outcome)
	}
}

func redirect(location string) *Result {
	return &Result{Status: StatusRedirect, Location: location}
}

func page(name string, data any) *Result {
	return &Result{Status: StatusOK, Page: name, Data: data, ContentType: ContentTypeHTML}
}

func invalid(name string, data any, msg string, err error) *Result {
	return &Result{
		Status:      StatusValidationFailure,
		Page:        name,
		Data:        data,
		ContentType: ContentTypeHTML,
		Message:     msg,
		Err:         err,
	}
}
