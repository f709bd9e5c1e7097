// ABOUTME: Document handlers: list, view, new, create, edit, update and delete
// ABOUTME: Mutating handlers consult the auth gate before touching the document store

package cms

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/folio/internal/docstore"
	"github.com/2389/folio/internal/session"
)

// DocumentStore is the subset of docstore.Store the handlers use.
type DocumentStore interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string) (*docstore.Document, error)
	Create(ctx context.Context, name string, content []byte) (string, error)
	Update(ctx context.Context, name string, content []byte) error
	Delete(ctx context.Context, name string) error
	Policy() docstore.Policy
}

// Messages shown for document validation failures
const (
	msgNameRequired   = "A name is required."
	msgAlreadyExists  = "File already exists."
	msgNameNotAllowed = "That name is not allowed."
)

func missingMessage(name string) string {
	return fmt.Sprintf("%s does not exist.", name)
}

// authorize runs the gate. A nil result means the caller may proceed.
func (s *Service) authorize(sess *session.Session) *Result {
	d := s.gate.Check(sess)
	if d.Allowed {
		return nil
	}
	sess.SetError(d.Message)
	res := redirect(d.Redirect)
	res.Err = ErrPermissionDenied
	return res
}

// notFound sets the missing-document error and sends the client to the list.
func notFound(sess *session.Session, name string) *Result {
	sess.SetError(missingMessage(name))
	res := redirect(ListLocation)
	res.Err = docstore.ErrNotFound
	return res
}

// List shows every document. Not gated.
func (s *Service) List(ctx context.Context, sess *session.Session) (*Result, error) {
	names, err := s.docs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return page(PageIndex, IndexData{Documents: names}), nil
}

// View shows one document. Markdown is rendered to HTML; everything else is
// returned verbatim as plain text. Not gated.
func (s *Service) View(ctx context.Context, sess *session.Session, name string) (*Result, error) {
	doc, err := s.docs.Read(ctx, name)
	if errors.Is(err, docstore.ErrNotFound) {
		s.recordDocumentOp("view", "missing")
		return notFound(sess, name), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	s.recordDocumentOp("view", "ok")

	switch doc.Kind {
	case docstore.KindMarkdown:
		html, err := s.renderer.Render(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("rendering %s: %w", name, err)
		}
		return &Result{
			Status:      StatusOK,
			Page:        PageDocument,
			Data:        DocumentData{Name: doc.Name, HTML: html},
			ContentType: ContentTypeHTML,
			Body:        []byte(html),
		}, nil
	default:
		return &Result{
			Status:      StatusOK,
			ContentType: ContentTypePlain,
			Body:        doc.Content,
		}, nil
	}
}

// NewForm shows the new-document form. Gated.
func (s *Service) NewForm(ctx context.Context, sess *session.Session) (*Result, error) {
	if res := s.authorize(sess); res != nil {
		return res, nil
	}
	return page(PageNew, DocumentFormData{}), nil
}

// Create makes a new document. Gated.
func (s *Service) Create(ctx context.Context, sess *session.Session, name, content string) (*Result, error) {
	if res := s.authorize(sess); res != nil {
		return res, nil
	}

	form := DocumentFormData{Name: name, Content: content}

	created, err := s.docs.Create(ctx, name, []byte(content))
	if err != nil {
		var msg string
		switch {
		case errors.Is(err, docstore.ErrEmptyName):
			msg = msgNameRequired
		case errors.Is(err, docstore.ErrInvalidExtension):
			msg = s.docs.Policy().Message()
		case errors.Is(err, docstore.ErrDuplicateName):
			msg = msgAlreadyExists
		case errors.Is(err, docstore.ErrInvalidName):
			msg = msgNameNotAllowed
		default:
			return nil, fmt.Errorf("creating %s: %w", name, err)
		}
		s.recordDocumentOp("create", "invalid")
		sess.SetError(msg)
		return invalid(PageNew, form, msg, err), nil
	}

	s.recordDocumentOp("create", "ok")
	user, _ := sess.CurrentUser()
	s.logger.Info("document created", "name", created, "user", user)

	sess.SetSuccess(fmt.Sprintf("%s has been created.", created))
	return redirect(ListLocation), nil
}

// EditForm shows a document's current content for editing. Gated.
func (s *Service) EditForm(ctx context.Context, sess *session.Session, name string) (*Result, error) {
	if res := s.authorize(sess); res != nil {
		return res, nil
	}

	doc, err := s.docs.Read(ctx, name)
	if errors.Is(err, docstore.ErrNotFound) {
		return notFound(sess, name), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	return page(PageEdit, DocumentFormData{Name: doc.Name, Content: string(doc.Content)}), nil
}

// Update replaces a document's content. Gated.
func (s *Service) Update(ctx context.Context, sess *session.Session, name, content string) (*Result, error) {
	if res := s.authorize(sess); res != nil {
		return res, nil
	}

	err := s.docs.Update(ctx, name, []byte(content))
	if errors.Is(err, docstore.ErrNotFound) {
		s.recordDocumentOp("update", "missing")
		return notFound(sess, name), nil
	}
	if err != nil {
		return nil, fmt.Errorf("updating %s: %w", name, err)
	}

	s.recordDocumentOp("update", "ok")
	user, _ := sess.CurrentUser()
	s.logger.Info("document updated", "name", name, "user", user)

	sess.SetSuccess(fmt.Sprintf("%s has been updated.", name))
	return redirect(ListLocation), nil
}

// Delete removes a document. Gated.
func (s *Service) Delete(ctx context.Context, sess *session.Session, name string) (*Result, error) {
	if res := s.authorize(sess); res != nil {
		return res, nil
	}

	err := s.docs.Delete(ctx, name)
	if errors.Is(err, docstore.ErrNotFound) {
		s.recordDocumentOp("delete", "missing")
		return notFound(sess, name), nil
	}
	if err != nil {
		return nil, fmt.Errorf("deleting %s: %w", name, err)
	}

	s.recordDocumentOp("delete", "ok")
	user, _ := sess.CurrentUser()
	s.logger.Info("document deleted", "name", name, "user", user)

	sess.SetSuccess(fmt.Sprintf("%s was deleted.", name))
	return redirect(ListLocation), nil
}
