package views

import (
	"github.com/rivo/tview"

	"github.com/pigeonmsg/pigeon/internal/tui/ui"
)

// Credentials is what the sign-in form collects.
type Credentials struct {
	Email    string
	Password string
}

// Registration is what the sign-up form collects.
type Registration struct {
	Email       string
	Password    string
	Username    string
	DisplayName string
}

// AuthView hosts the sign-in and sign-up forms.
type AuthView struct {
	*tview.Pages
	theme    *ui.Theme
	login    *tview.Form
	register *tview.Form
	message  *tview.TextView

	onSignIn func(Credentials)
	onSignUp func(Registration)
}

// NewAuthView creates the auth view showing the sign-in form first.
func NewAuthView(theme *ui.Theme) *AuthView {
	av := &AuthView{
		Pages: tview.NewPages(),
		theme: theme,
	}

	av.message = tview.NewTextView().SetDynamicColors(true)
	av.message.SetTextColor(theme.FlashErrColor)

	av.login = tview.NewForm().
		AddInputField("Email", "", 40, nil, nil).
		AddPasswordField("Password", "", 40, '*', nil).
		AddButton("Sign In", func() {
			if av.onSignIn != nil {
				av.onSignIn(Credentials{
					Email:    av.fieldText(av.login, "Email"),
					Password: av.fieldText(av.login, "Password"),
				})
			}
		}).
		AddButton("Register", func() {
			av.SwitchToPage("register")
		})
	av.login.SetBorder(true)
	av.login.SetTitle(" Sign In ")
	av.login.SetTitleColor(theme.TitleColor)
	av.login.SetBorderColor(theme.BorderColor)

	av.register = tview.NewForm().
		AddInputField("Email", "", 40, nil, nil).
		AddPasswordField("Password", "", 40, '*', nil).
		AddInputField("Username", "", 40, nil, nil).
		AddInputField("Display name", "", 40, nil, nil).
		AddButton("Create account", func() {
			if av.onSignUp != nil {
				av.onSignUp(Registration{
					Email:       av.fieldText(av.register, "Email"),
					Password:    av.fieldText(av.register, "Password"),
					Username:    av.fieldText(av.register, "Username"),
					DisplayName: av.fieldText(av.register, "Display name"),
				})
			}
		}).
		AddButton("Back", func() {
			av.SwitchToPage("login")
		})
	av.register.SetBorder(true)
	av.register.SetTitle(" Register ")
	av.register.SetTitleColor(theme.TitleColor)
	av.register.SetBorderColor(theme.BorderColor)

	av.AddPage("login", av.wrap(av.login, 11), true, true)
	av.AddPage("register", av.wrap(av.register, 15), true, false)
	return av
}

// SetOnSignIn sets the sign-in submit callback.
func (av *AuthView) SetOnSignIn(fn func(Credentials)) { av.onSignIn = fn }

// SetOnSignUp sets the sign-up submit callback.
func (av *AuthView) SetOnSignUp(fn func(Registration)) { av.onSignUp = fn }

// ShowError renders an error line under the active form.
func (av *AuthView) ShowError(msg string) {
	av.message.SetText(tview.Escape(msg))
}

// ClearError clears the error line.
func (av *AuthView) ClearError() {
	av.message.SetText("")
}

// Reset blanks both forms, dropping any typed credentials.
func (av *AuthView) Reset() {
	for _, form := range []*tview.Form{av.login, av.register} {
		for i := 0; i < form.GetFormItemCount(); i++ {
			if field, ok := form.GetFormItem(i).(*tview.InputField); ok {
				field.SetText("")
			}
		}
	}
	av.ClearError()
	av.SwitchToPage("login")
}

// wrap centers a form and stacks the shared message line under it.
func (av *AuthView) wrap(form *tview.Form, height int) tview.Primitive {
	inner := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(form, height, 0, true).
		AddItem(av.message, 1, 0, false).
		AddItem(nil, 0, 1, false)
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(inner, 60, 0, true).
		AddItem(nil, 0, 1, false)
}

func (av *AuthView) fieldText(form *tview.Form, label string) string {
	for i := 0; i < form.GetFormItemCount(); i++ {
		if field, ok := form.GetFormItem(i).(*tview.InputField); ok && field.GetLabel() == label {
			return field.GetText()
		}
	}
	return ""
}
