package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/pigeonmsg/pigeon/internal/bus"
	"github.com/pigeonmsg/pigeon/internal/convo"
	"github.com/pigeonmsg/pigeon/internal/directory"
	"github.com/pigeonmsg/pigeon/internal/model"
	"github.com/pigeonmsg/pigeon/internal/session"
	"github.com/pigeonmsg/pigeon/internal/thread"
	"github.com/pigeonmsg/pigeon/internal/tui/keys"
	"github.com/pigeonmsg/pigeon/internal/tui/ui"
	"github.com/pigeonmsg/pigeon/internal/tui/views"
)

const flashTTL = 5 * time.Second

// App is the main TUI application shell. It owns no domain state: every
// page renders from an engine snapshot and every action delegates to an
// engine, with redraws queued through tview's event loop.
type App struct {
	app      *tview.Application
	pages    *tview.Pages
	registry *keys.Registry
	theme    *ui.Theme
	flash    *Flash

	provider *session.Provider
	convos   *convo.Engine
	threads  *thread.Engine
	contacts *directory.Directory
	bus      *bus.Bus
	logger   *zap.Logger

	statusBar *views.StatusBar
	convList  *views.ConversationList
	filterP   *ui.FilterPrompt
	msgView   *views.MessageView
	composer  *views.Composer
	authView  *views.AuthView
	contactsV *views.ContactsView
	settingsV *views.SettingsView

	chatsLayout *tview.Flex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(provider *session.Provider, convos *convo.Engine, threads *thread.Engine, contacts *directory.Directory, eventBus *bus.Bus, profileName string, logger *zap.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		pages:    tview.NewPages(),
		registry: keys.NewRegistry(),
		theme:    theme,
		flash:    NewFlash(),
		provider: provider,
		convos:   convos,
		threads:  threads,
		contacts: contacts,
		bus:      eventBus,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	a.statusBar = views.NewStatusBar()
	a.convList = views.NewConversationList(theme)
	a.filterP = ui.NewFilterPrompt(theme)
	a.msgView = views.NewMessageView(threads.DisplayStatus)
	a.composer = views.NewComposer(theme)
	a.authView = views.NewAuthView(theme)
	a.contactsV = views.NewContactsView(theme)
	a.settingsV = views.NewSettingsView(theme)

	a.statusBar.SetProfile(profileName)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddView("chats", "quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddView("chats", "contacts", &keys.Action{
		Rune: 'c', Key: tcell.KeyRune,
		Description: "c:contacts", Visible: true,
		Handler: func() { a.showContacts() },
	})
	a.registry.AddView("chats", "reload", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:reload", Visible: true,
		Handler: func() { a.reloadConversations() },
	})
	a.registry.AddView("chats", "show-all", &keys.Action{
		Rune: '0', Key: tcell.KeyRune,
		Description: "0:show all", Visible: true,
		Handler: func() {
			a.filterP.Reset()
			a.convList.ClearFilter()
		},
	})
	a.registry.AddView("chats", "settings", &keys.Action{
		Rune: 'P', Key: tcell.KeyRune,
		Description: "P:profile", Visible: true,
		Handler: func() { a.showSettings() },
	})
	a.registry.AddView("chats", "logout", &keys.Action{
		Rune: 'L', Key: tcell.KeyRune,
		Description: "L:logout", Visible: true,
		Handler: func() { a.signOut() },
	})
	a.registry.AddView("contacts", "request", &keys.Action{
		Rune: 'a', Key: tcell.KeyRune,
		Description: "a:add friend", Visible: true,
		Handler: func() { a.sendFriendRequest() },
	})
	a.registry.AddView("contacts", "message", &keys.Action{
		Rune: 'm', Key: tcell.KeyRune,
		Description: "m:message", Visible: true,
		Handler: func() { a.messageSelected() },
	})
	a.registry.AddView("contacts", "accept", &keys.Action{
		Rune: 'y', Key: tcell.KeyRune,
		Description: "y:accept", Visible: true,
		Handler: func() { a.resolveRequest(true) },
	})
	a.registry.AddView("contacts", "reject", &keys.Action{
		Rune: 'x', Key: tcell.KeyRune,
		Description: "x:reject", Visible: true,
		Handler: func() { a.resolveRequest(false) },
	})
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectedFunc(func(row, col int) {
		if id := a.convList.SelectedConversation(); id != "" {
			a.openConversation(id)
		}
	})

	a.composer.SetOnSend(func(text string) {
		go func() {
			if err := a.threads.Send(a.ctx, text); err != nil {
				a.flash.Set("Send failed: "+err.Error(), flashTTL)
			}
			a.redraw(func() {
				a.msgView.Update(a.threads.Messages())
				a.statusBar.SetFlash(a.flash.Get())
			})
		}()
	})

	a.authView.SetOnSignIn(func(c views.Credentials) {
		go func() {
			if err := a.provider.SignIn(a.ctx, c.Email, c.Password); err != nil {
				a.redraw(func() { a.authView.ShowError(err.Error()) })
				return
			}
			a.enterSignedIn()
		}()
	})
	a.authView.SetOnSignUp(func(r views.Registration) {
		go func() {
			if err := a.provider.SignUp(a.ctx, r.Email, r.Password, r.Username, r.DisplayName); err != nil {
				a.redraw(func() { a.authView.ShowError(err.Error()) })
				return
			}
			a.enterSignedIn()
		}()
	})

	a.settingsV.SetOnSave(func(edit views.ProfileEdit) {
		go func() {
			if err := a.provider.UpdateProfile(a.ctx, edit.DisplayName, edit.AvatarURL); err != nil {
				a.flash.Set("Profile update failed: "+err.Error(), flashTTL)
			} else {
				a.flash.Set("Profile updated", flashTTL)
			}
			a.redraw(func() {
				a.statusBar.SetFlash(a.flash.Get())
				a.showChats()
			})
		}()
	})
	a.settingsV.SetOnCancel(func() { a.showChats() })

	a.filterP.SetOnChange(func(text string) { a.convList.SetFilter(text) })
	a.filterP.SetOnDone(func(accepted bool) { a.closeFilter(accepted) })

	a.contactsV.SetOnQuery(func(term string) {
		go func() {
			matches, err := a.contacts.Search(a.ctx, term)
			if err != nil {
				a.flash.Set("Search failed: "+err.Error(), flashTTL)
				a.redraw(func() { a.statusBar.SetFlash(a.flash.Get()) })
				return
			}
			a.redraw(func() {
				a.contactsV.UpdateResults(matches)
				a.app.SetFocus(a.contactsV.Results())
			})
		}()
	})
}

func (a *App) setupLayout() {
	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.chatsLayout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.convList, 0, 1, true).
		AddItem(a.filterP, 0, 0, false)

	a.pages.AddPage("auth", a.authView, true, false)
	a.pages.AddPage("chats", a.chatsLayout, true, true)
	a.pages.AddPage("chat", chatFlex, true, false)
	a.pages.AddPage("contacts", a.contactsV, true, false)
	a.pages.AddPage("settings", a.settingsV, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape {
			switch currentPage {
			case "chat":
				a.threads.Unbind()
				a.showChats()
				return nil
			case "contacts", "settings":
				a.showChats()
				return nil
			}
		}

		// Let text input widgets handle all keys normally.
		focused := a.app.GetFocus()
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}

		// 'i' focuses the composer (only when not already in an input field).
		if currentPage == "chat" && event.Key() == tcell.KeyRune && event.Rune() == 'i' {
			a.app.SetFocus(a.composer.InputField)
			return nil
		}

		// '/' focuses the contact search field.
		if currentPage == "contacts" && event.Key() == tcell.KeyRune && event.Rune() == '/' {
			a.app.SetFocus(a.contactsV.Input())
			return nil
		}

		// '/' opens the conversation filter.
		if currentPage == "chats" && event.Key() == tcell.KeyRune && event.Rune() == '/' {
			a.openFilter()
			return nil
		}

		// 1-9 jump to the Nth visible conversation.
		if currentPage == "chats" && event.Key() == tcell.KeyRune && event.Rune() >= '1' && event.Rune() <= '9' {
			if id := a.convList.ConversationByIndex(int(event.Rune() - '0')); id != "" {
				a.openConversation(id)
			}
			return nil
		}

		if a.registry.HandleEvent(currentPage, event) {
			return nil
		}
		return event
	})
}

// Run starts the TUI event loop and blocks until the app stops.
func (a *App) Run() error {
	// Before the event loop starts, mutate views directly; queued updates
	// would block until Run begins consuming them.
	if id := a.provider.Current(); id != nil {
		a.msgView.SetSelf(id.ID)
		a.statusBar.SetUser(id.Username)
		a.reloadConversations()
	} else {
		a.pages.SwitchToPage("auth")
	}

	go a.eventLoop()
	go a.refreshLoop()

	return a.app.Run()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

// eventLoop folds pushed events into queued redraws. The engines already
// updated their state before these land; the loop only refreshes views.
func (a *App) eventLoop() {
	msgCh, unsubMsg := a.bus.Subscribe(bus.MessagePrefix, 256)
	stCh, unsubSt := a.bus.Subscribe(bus.StatusTopic, 256)
	connCh, unsubConn := a.bus.Subscribe(bus.ConnectionTopic, 4)
	defer unsubMsg()
	defer unsubSt()
	defer unsubConn()

	for {
		select {
		case <-msgCh:
			a.redraw(func() {
				page, _ := a.pages.GetFrontPage()
				switch page {
				case "chats":
					a.convList.Update(a.convos.Conversations())
				case "chat":
					a.msgView.Update(a.threads.Messages())
				}
			})
		case <-stCh:
			a.redraw(func() {
				if page, _ := a.pages.GetFrontPage(); page == "chat" {
					a.msgView.Update(a.threads.Messages())
				}
			})
		case evt := <-connCh:
			connected, _ := evt.Payload.(bool)
			a.redraw(func() { a.statusBar.SetConnected(connected) })
		case <-a.ctx.Done():
			return
		}
	}
}

// refreshLoop periodically reconciles views against the remote store so
// drift from dropped events heals without user action.
func (a *App) refreshLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if a.provider.Current() == nil {
				continue
			}
			convs, err := a.convos.Load(a.ctx)
			if err != nil {
				a.logger.Warn("periodic reload failed", zap.Error(err))
				continue
			}
			a.redraw(func() {
				if page, _ := a.pages.GetFrontPage(); page == "chats" {
					a.convList.Update(convs)
				}
				a.statusBar.SetFlash(a.flash.Get())
			})
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) enterSignedIn() {
	if id := a.provider.Current(); id != nil {
		a.msgView.SetSelf(id.ID)
		a.redraw(func() { a.statusBar.SetUser(id.Username) })
	}
	a.reloadConversations()
}

func (a *App) reloadConversations() {
	go func() {
		convs, err := a.convos.Load(a.ctx)
		if err != nil {
			a.flash.Set("Load failed: "+err.Error(), flashTTL)
		}
		a.redraw(func() {
			a.convList.Update(convs)
			a.statusBar.SetFlash(a.flash.Get())
			a.pages.SwitchToPage("chats")
			a.app.SetFocus(a.convList)
		})
	}()
}

func (a *App) openConversation(id string) {
	go func() {
		if err := a.threads.Bind(a.ctx, id); err != nil {
			a.flash.Set("Open failed: "+err.Error(), flashTTL)
			a.redraw(func() { a.statusBar.SetFlash(a.flash.Get()) })
			return
		}
		if err := a.convos.MarkRead(a.ctx, id); err != nil {
			a.logger.Warn("mark read failed", zap.Error(err), zap.String("conversation_id", id))
		}

		name := id
		for _, c := range a.convos.Conversations() {
			if c.ID == id {
				name = conversationTitle(c)
				break
			}
		}
		a.redraw(func() {
			a.msgView.SetConversationName(name)
			a.msgView.Update(a.threads.Messages())
			a.pages.SwitchToPage("chat")
			a.app.SetFocus(a.composer.InputField)
		})
	}()
}

func (a *App) showChats() {
	a.convList.Update(a.convos.Conversations())
	a.pages.SwitchToPage("chats")
	a.app.SetFocus(a.convList)
}

func (a *App) openFilter() {
	a.chatsLayout.ResizeItem(a.filterP, 3, 0)
	a.app.SetFocus(a.filterP)
}

func (a *App) closeFilter(accepted bool) {
	if !accepted {
		a.filterP.Reset()
		a.convList.ClearFilter()
	}
	a.chatsLayout.ResizeItem(a.filterP, 0, 0)
	a.app.SetFocus(a.convList)
}

func (a *App) showContacts() {
	a.pages.SwitchToPage("contacts")
	a.app.SetFocus(a.contactsV.Input())
	go func() {
		reqs, err := a.contacts.Pending(a.ctx)
		if err != nil {
			a.logger.Warn("pending requests load failed", zap.Error(err))
			return
		}
		a.redraw(func() { a.contactsV.UpdateRequests(reqs) })
	}()
}

func (a *App) showSettings() {
	if id := a.provider.Current(); id != nil {
		a.settingsV.Prefill(id.DisplayName, id.AvatarURL)
	}
	a.pages.SwitchToPage("settings")
	a.app.SetFocus(a.settingsV)
}

func (a *App) sendFriendRequest() {
	match := a.contactsV.SelectedMatch()
	if match == nil {
		return
	}
	go func() {
		if err := a.contacts.SendRequest(a.ctx, match.ID); err != nil {
			a.flash.Set("Request failed: "+err.Error(), flashTTL)
		} else {
			a.flash.Set("Request sent to "+match.Username, flashTTL)
		}
		a.redraw(func() {
			a.contactsV.UpdateResults(a.contacts.Results())
			a.statusBar.SetFlash(a.flash.Get())
		})
	}()
}

func (a *App) messageSelected() {
	match := a.contactsV.SelectedMatch()
	if match == nil {
		return
	}
	go func() {
		conv, err := a.convos.CreatePrivate(a.ctx, match.ID)
		if err != nil {
			a.flash.Set("Open failed: "+err.Error(), flashTTL)
			a.redraw(func() { a.statusBar.SetFlash(a.flash.Get()) })
			return
		}
		if _, err := a.convos.Load(a.ctx); err != nil {
			a.logger.Warn("reload after create failed", zap.Error(err))
		}
		a.openConversation(conv.ID)
	}()
}

func (a *App) resolveRequest(accept bool) {
	req := a.contactsV.SelectedRequest()
	if req == nil {
		return
	}
	go func() {
		var err error
		if accept {
			err = a.contacts.Accept(a.ctx, req.ID)
		} else {
			err = a.contacts.Reject(a.ctx, req.ID)
		}
		if err != nil {
			a.flash.Set("Request update failed: "+err.Error(), flashTTL)
		}
		reqs, lerr := a.contacts.Pending(a.ctx)
		if lerr != nil {
			a.logger.Warn("pending requests reload failed", zap.Error(lerr))
		}
		a.redraw(func() {
			a.contactsV.UpdateRequests(reqs)
			a.statusBar.SetFlash(a.flash.Get())
		})
	}()
}

func (a *App) signOut() {
	go func() {
		a.threads.Unbind()
		if err := a.provider.SignOut(a.ctx); err != nil {
			a.logger.Warn("sign-out failed", zap.Error(err))
		}
		a.flash.Clear()
		a.redraw(func() {
			a.statusBar.SetUser("")
			a.statusBar.SetFlash("")
			a.filterP.Reset()
			a.convList.ClearFilter()
			a.convList.Update(nil)
			a.authView.Reset()
			a.pages.SwitchToPage("auth")
		})
	}()
}

func (a *App) redraw(fn func()) {
	a.app.QueueUpdateDraw(fn)
}

func conversationTitle(c model.Conversation) string {
	if c.Peer != nil && c.Peer.DisplayName != "" {
		return c.Peer.DisplayName
	}
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}
