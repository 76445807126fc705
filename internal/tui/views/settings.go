package views

import (
	"github.com/rivo/tview"

	"github.com/pigeonmsg/pigeon/internal/tui/ui"
)

// ProfileEdit is what the settings form collects. Empty fields mean
// "leave unchanged".
type ProfileEdit struct {
	DisplayName string
	AvatarURL   string
}

// SettingsView is the profile edit form.
type SettingsView struct {
	*tview.Flex
	form *tview.Form

	onSave   func(ProfileEdit)
	onCancel func()
}

// NewSettingsView creates the settings page.
func NewSettingsView(theme *ui.Theme) *SettingsView {
	sv := &SettingsView{}

	sv.form = tview.NewForm().
		AddInputField("Display name", "", 40, nil, nil).
		AddInputField("Avatar URL", "", 40, nil, nil).
		AddButton("Save", func() {
			if sv.onSave != nil {
				sv.onSave(ProfileEdit{
					DisplayName: sv.fieldText("Display name"),
					AvatarURL:   sv.fieldText("Avatar URL"),
				})
			}
		}).
		AddButton("Cancel", func() {
			if sv.onCancel != nil {
				sv.onCancel()
			}
		})
	sv.form.SetBorder(true)
	sv.form.SetTitle(" Profile ")
	sv.form.SetTitleColor(theme.TitleColor)
	sv.form.SetBorderColor(theme.BorderColor)

	inner := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(sv.form, 11, 0, true).
		AddItem(nil, 0, 1, false)
	sv.Flex = tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(inner, 60, 0, true).
		AddItem(nil, 0, 1, false)

	return sv
}

// SetOnSave sets the save callback.
func (sv *SettingsView) SetOnSave(fn func(ProfileEdit)) { sv.onSave = fn }

// SetOnCancel sets the cancel callback.
func (sv *SettingsView) SetOnCancel(fn func()) { sv.onCancel = fn }

// Prefill loads the current values into the form.
func (sv *SettingsView) Prefill(displayName, avatarURL string) {
	sv.setFieldText("Display name", displayName)
	sv.setFieldText("Avatar URL", avatarURL)
}

func (sv *SettingsView) fieldText(label string) string {
	for i := 0; i < sv.form.GetFormItemCount(); i++ {
		if field, ok := sv.form.GetFormItem(i).(*tview.InputField); ok && field.GetLabel() == label {
			return field.GetText()
		}
	}
	return ""
}

func (sv *SettingsView) setFieldText(label, text string) {
	for i := 0; i < sv.form.GetFormItemCount(); i++ {
		if field, ok := sv.form.GetFormItem(i).(*tview.InputField); ok && field.GetLabel() == label {
			field.SetText(text)
		}
	}
}
