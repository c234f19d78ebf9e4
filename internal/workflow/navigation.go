package workflow

import (
	"context"

	apperrors "agrodoc/internal/errors"
	"agrodoc/internal/session"
)

// Navigate moves the session to the named page. Anonymous visitors asking for
// a page other than Home, About or Account land on Account instead; the page
// actually shown is returned.
func (c *Controller) Navigate(_ context.Context, s *session.Session, name string) (session.Page, error) {
	page, ok := session.ParsePage(name)
	if !ok {
		return "", apperrors.ErrUnknownPage
	}

	var shown session.Page
	err := s.Update(func(st *session.State) error {
		shown = c.enterPage(st, page)
		return nil
	})
	return shown, err
}

// enterPage applies the access rule and switches pages.
func (c *Controller) enterPage(st *session.State, page session.Page) session.Page {
	if !page.IsPublic() && !st.Authenticated() {
		st.Page = session.PageAccount
		st.SetNotice(session.NoticeWarning, apperrors.ErrLoginRequired.Message)
		return st.Page
	}
	st.Page = page
	return page
}

// VisiblePage returns the page to render for st, applying the same access
// rule as Navigate. It never mutates st.
func VisiblePage(st session.State) session.Page {
	if !st.Page.IsPublic() && !st.Authenticated() {
		return session.PageAccount
	}
	return st.Page
}

// MenuPages lists the pages offered in navigation for st.
func MenuPages(st session.State) []session.Page {
	if st.Authenticated() {
		return session.Pages
	}
	return session.PublicPages
}

// TakeNotice returns and clears the pending notice.
func (c *Controller) TakeNotice(s *session.Session) *session.Notice {
	var n *session.Notice
	_ = s.Update(func(st *session.State) error {
		n = st.Notice
		st.Notice = nil
		return nil
	})
	return n
}
