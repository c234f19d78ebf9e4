package workflow

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"agrodoc/internal/diseaseinfo"
	apperrors "agrodoc/internal/errors"
	"agrodoc/internal/labels"
	"agrodoc/internal/session"
)

const (
	promptPlant   = "Please select the plant type you're interested in:"
	promptDisease = "Now select the specific disease for %s:"
	msgApology    = "⚠️ Oops! I encountered an error. Let's start over..."
)

// Option is one selectable menu entry: Key is sent back, Label is shown.
type Option struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// InfoCard is the reference content shown at the end of a dialogue cycle.
type InfoCard struct {
	Label     string           `json:"label"`
	Plant     string           `json:"plant"`
	Condition string           `json:"condition"`
	Tier      diseaseinfo.Tier `json:"tier"`
	diseaseinfo.Info
}

type DialogueView struct {
	Step       session.DialogueStep `json:"step"`
	Plant      string               `json:"plant,omitempty"`
	Options    []Option             `json:"options"`
	Info       *InfoCard            `json:"info,omitempty"`
	Transcript []session.Turn       `json:"transcript"`
}

// ShowDialogue renders the current step, adding its bot prompt to the
// transcript unless the transcript already holds it.
func (c *Controller) ShowDialogue(_ context.Context, s *session.Session) (*DialogueView, error) {
	var view *DialogueView
	err := s.Update(func(st *session.State) error {
		if _, err := currentUser(st); err != nil {
			return err
		}
		view = c.enterStep(st)
		return nil
	})
	return view, err
}

// SelectPlant picks the plant and moves to disease selection. The choice
// may be a plant key or its display name; unknown plants are accepted and
// simply offer no conditions.
func (c *Controller) SelectPlant(_ context.Context, s *session.Session, choice string) (*DialogueView, error) {
	choice = strings.TrimSpace(choice)
	if choice == "" {
		return nil, apperrors.ErrMissingField
	}

	var view *DialogueView
	err := s.Update(func(st *session.State) error {
		if _, err := currentUser(st); err != nil {
			return err
		}
		if st.Step != session.StepPlantSelection {
			return apperrors.ErrWrongStep
		}
		plant := c.resolvePlant(choice)
		c.appendTurn(st, session.SpeakerUser, labels.DisplayPlant(plant))
		st.SelectedPlant = plant
		st.SelectedLabel = ""
		st.Step = session.StepDiseaseSelection
		view = c.enterStep(st)
		return nil
	})
	return view, err
}

// SelectCondition picks a condition of the selected plant and shows its
// reference content. A choice that matches no listed condition is turned
// into a label by replacing spaces with underscores; the catalog lookup then
// falls back as usual.
func (c *Controller) SelectCondition(_ context.Context, s *session.Session, choice string) (*DialogueView, error) {
	choice = strings.TrimSpace(choice)
	if choice == "" {
		return nil, apperrors.ErrMissingField
	}

	var view *DialogueView
	err := s.Update(func(st *session.State) error {
		if _, err := currentUser(st); err != nil {
			return err
		}
		if st.Step != session.StepDiseaseSelection {
			return apperrors.ErrWrongStep
		}
		condition := c.resolveCondition(st.SelectedPlant, choice)
		c.appendTurn(st, session.SpeakerUser, labels.DisplayCondition(condition))
		st.SelectedLabel = labels.Compose(st.SelectedPlant, condition)
		st.Step = session.StepDiseaseInfo
		view = c.enterStep(st)
		return nil
	})
	return view, err
}

// DialogueBack steps back one level: info to disease selection, disease
// selection to plant selection.
func (c *Controller) DialogueBack(_ context.Context, s *session.Session) (*DialogueView, error) {
	var view *DialogueView
	err := s.Update(func(st *session.State) error {
		if _, err := currentUser(st); err != nil {
			return err
		}
		switch st.Step {
		case session.StepDiseaseInfo:
			st.Step = session.StepDiseaseSelection
			st.SelectedLabel = ""
		case session.StepDiseaseSelection:
			st.Step = session.StepPlantSelection
			st.SelectedPlant = ""
		}
		view = c.enterStep(st)
		return nil
	})
	return view, err
}

// NewDialogue clears the transcript and starts again at plant selection.
func (c *Controller) NewDialogue(_ context.Context, s *session.Session) (*DialogueView, error) {
	var view *DialogueView
	err := s.Update(func(st *session.State) error {
		if _, err := currentUser(st); err != nil {
			return err
		}
		restartDialogue(st)
		view = c.enterStep(st)
		return nil
	})
	return view, err
}

func restartDialogue(st *session.State) {
	st.Step = session.StepPlantSelection
	st.SelectedPlant = ""
	st.SelectedLabel = ""
	st.Transcript = nil
}

// enterStep appends the bot turn for the current step and builds the view.
// A failure while building the info card apologises and restarts at plant
// selection, keeping the transcript.
func (c *Controller) enterStep(st *session.State) *DialogueView {
	view := &DialogueView{Step: st.Step, Plant: st.SelectedPlant, Options: []Option{}}

	switch st.Step {
	case session.StepDiseaseSelection:
		c.appendTurn(st, session.SpeakerBot, fmt.Sprintf(promptDisease, labels.DisplayPlant(st.SelectedPlant)))
		for _, cond := range c.labels.Conditions(st.SelectedPlant) {
			view.Options = append(view.Options, Option{Key: cond, Label: labels.DisplayCondition(cond)})
		}

	case session.StepDiseaseInfo:
		card, err := c.infoCard(st.SelectedLabel)
		if err != nil {
			c.log.Warn("dialogue info failed", "label", st.SelectedLabel, "error", err)
			c.appendTurn(st, session.SpeakerBot, msgApology)
			st.SetNotice(session.NoticeError, "Error displaying disease information")
			st.Step = session.StepPlantSelection
			st.SelectedPlant = ""
			st.SelectedLabel = ""
			return c.enterStep(st)
		}
		c.appendTurn(st, session.SpeakerBot, card.summary())
		view.Info = card

	default:
		st.Step = session.StepPlantSelection
		view.Step = st.Step
		view.Plant = ""
		c.appendTurn(st, session.SpeakerBot, promptPlant)
		for _, plant := range c.labels.Plants() {
			view.Options = append(view.Options, Option{Key: plant, Label: labels.DisplayPlant(plant)})
		}
	}

	view.Transcript = slices.Clone(st.Transcript)
	return view
}

func (c *Controller) infoCard(label string) (*InfoCard, error) {
	plant, condition, ok := labels.Split(label)
	if !ok {
		return nil, fmt.Errorf("malformed label %q", label)
	}
	info, tier := c.catalog.Lookup(label)
	c.metrics.RecordDialogueLookup(string(tier))
	return &InfoCard{
		Label:     label,
		Plant:     labels.DisplayPlant(plant),
		Condition: labels.DisplayCondition(condition),
		Tier:      tier,
		Info:      info,
	}, nil
}

func (card *InfoCard) summary() string {
	return card.Condition + ": " + card.Description
}

// appendTurn adds a turn. A bot turn already present in the transcript is
// not added again, so re-rendering or stepping back never repeats a prompt.
func (c *Controller) appendTurn(st *session.State, speaker session.Speaker, text string) {
	if speaker == session.SpeakerBot && slices.ContainsFunc(st.Transcript, func(t session.Turn) bool {
		return t.Speaker == session.SpeakerBot && t.Text == text
	}) {
		return
	}
	st.Transcript = append(st.Transcript, session.Turn{Speaker: speaker, Text: text, At: c.now()})
}

func (c *Controller) resolvePlant(choice string) string {
	for _, plant := range c.labels.Plants() {
		if plant == choice || strings.EqualFold(labels.DisplayPlant(plant), labels.Humanize(choice)) {
			return plant
		}
	}
	return choice
}

func (c *Controller) resolveCondition(plant, choice string) string {
	for _, cond := range c.labels.Conditions(plant) {
		if cond == choice || strings.EqualFold(labels.DisplayCondition(cond), labels.Humanize(choice)) {
			return cond
		}
	}
	return strings.ReplaceAll(choice, " ", "_")
}
