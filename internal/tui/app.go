package tui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/convo/internal/api"
	"github.com/matheus3301/convo/internal/tui/keys"
	"github.com/matheus3301/convo/internal/tui/model"
	"github.com/matheus3301/convo/internal/tui/ui"
	"github.com/matheus3301/convo/internal/tui/views"
	"github.com/rivo/tview"
)

const (
	pageLogin         = "login"
	pageConversations = "conversations"
	pageConversation  = "conversation"
	pageDetails       = "details"
	pageHelp          = "help"
)

// Authenticator signs the profile in and out.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (api.User, error)
	Logout(ctx context.Context) error
}

// Live controls the push connection.
type Live interface {
	Start(ctx context.Context)
	Stop()
	Connected() bool
}

// Options configures an App.
type Options struct {
	Profile  string
	SignedIn bool
	Theme    *ui.Theme
}

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	root     *tview.Flex
	pages    *ui.Pages
	theme    *ui.Theme
	vm       *model.ViewModel
	auth     Authenticator
	live     Live
	registry *keys.Registry
	opts     Options
	started  time.Time

	info      *ui.SessionInfo
	menu      *ui.Menu
	logo      *ui.Logo
	crumbs    *ui.Crumbs
	prompt    *ui.Prompt
	flash     *ui.FlashBar
	statusBar *views.StatusBar

	login   *views.LoginView
	list    *views.ConversationList
	thread  *views.MessageThread
	details *views.ConversationInfo
	help    *views.HelpView

	components   map[string]ui.Component
	promptActive bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(vm *model.ViewModel, auth Authenticator, live Live, opts Options) *App {
	if opts.Theme == nil {
		opts.Theme = ui.DefaultTheme()
	}
	theme := opts.Theme
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:       tview.NewApplication(),
		pages:     ui.NewPages(),
		theme:     theme,
		vm:        vm,
		auth:      auth,
		live:      live,
		registry:  keys.NewRegistry(),
		opts:      opts,
		started:   time.Now(),
		info:      ui.NewSessionInfo(theme),
		menu:      ui.NewMenu(theme),
		logo:      ui.NewLogo(theme),
		crumbs:    ui.NewCrumbs(theme),
		prompt:    ui.NewPrompt(theme),
		flash:     ui.NewFlashBar(theme),
		statusBar: views.NewStatusBar(theme),
		login:     views.NewLoginView(theme),
		list:      views.NewConversationList(theme),
		thread:    views.NewMessageThread(theme),
		details:   views.NewConversationInfo(theme),
		help:      views.NewHelpView(theme),
		ctx:       ctx,
		cancel:    cancel,
	}
	a.components = map[string]ui.Component{
		pageLogin:         a.login,
		pageConversations: a.list,
		pageConversation:  a.thread,
		pageDetails:       a.details,
		pageHelp:          a.help,
	}

	a.statusBar.SetProfile(opts.Profile)
	for page, c := range a.components {
		a.crumbs.SetLabel(page, c.Name())
	}
	a.prompt.SetCommands(CommandNames)

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: '?', Description: "Help", Visible: true,
		Handler: func() { a.pushPage(pageHelp) },
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: ':', Description: "Command", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptCommand) },
	})

	a.registry.AddView(pageConversations, &keys.Action{
		Key: tcell.KeyRune, Rune: '/', Description: "Filter", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptFilter) },
	})
	a.registry.AddView(pageConversations, &keys.Action{
		Key: tcell.KeyRune, Rune: 'r', Description: "Reload", Visible: true,
		Handler: func() { go a.reloadConversations() },
	})
	a.registry.AddView(pageConversations, &keys.Action{
		Key: tcell.KeyRune, Rune: 'q', Description: "Quit", Visible: true,
		Handler: a.Stop,
	})
	for n := 1; n <= 9; n++ {
		a.registry.AddView(pageConversations, &keys.Action{
			Key: tcell.KeyRune, Rune: rune('0' + n),
			Handler: func() {
				if id := a.list.ByIndex(n); id != 0 {
					a.openConversation(id)
				}
			},
		})
	}

	a.registry.AddView(pageConversation, &keys.Action{
		Key: tcell.KeyRune, Rune: 'i', Description: "Compose",
		Handler: func() { a.app.SetFocus(a.thread.Composer()) },
	})
	a.registry.AddView(pageConversation, &keys.Action{
		Key: tcell.KeyRune, Rune: 'd', Description: "Details",
		Handler: func() { a.pushPage(pageDetails) },
	})
}

func (a *App) setupCallbacks() {
	a.login.SetOnSubmit(a.signIn)

	a.list.SetSelectedFunc(func(row, _ int) {
		if id := a.list.ByIndex(row); id != 0 {
			a.openConversation(id)
		}
	})

	a.thread.SetOnChange(a.vm.SetDraft)
	a.thread.SetOnSend(func(text string) {
		go func() {
			// Failures become view state; the composer keeps the text.
			_ = a.vm.Submit(a.ctx, text)
			a.app.QueueUpdateDraw(a.render)
		}()
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		case ui.PromptFilter:
			a.list.SetFilter(text)
		}
	})
	a.prompt.SetOnChange(func(mode ui.PromptMode, text string) {
		if mode == ui.PromptFilter {
			a.list.SetFilter(text)
		}
	})
	a.prompt.SetOnCancel(a.hidePrompt)

	a.pages.SetOnChange(func(stack []string) {
		a.crumbs.Update(stack)
		a.updateMenu()
	})
}

func (a *App) setupLayout() {
	a.pages.AddPage(pageLogin, a.login, true, false)
	a.pages.AddPage(pageConversations, a.list, true, false)
	a.pages.AddPage(pageConversation, a.thread, true, false)
	a.pages.AddPage(pageDetails, a.details, true, false)
	a.pages.AddPage(pageHelp, a.help, true, false)

	header := tview.NewFlex().
		AddItem(a.info, 0, 1, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(a.logo, 20, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 6, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flash, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(a.root, true)
	a.app.SetInputCapture(a.handleKey)
}

func (a *App) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	if a.promptActive {
		return ev
	}
	page := a.pages.Current()
	focused := a.app.GetFocus()

	if ev.Key() == tcell.KeyEscape {
		if focused == a.thread.Composer() {
			a.app.SetFocus(a.thread.Messages())
			return nil
		}
		a.back()
		return nil
	}

	// Text inputs get every other key.
	if page == pageLogin {
		return ev
	}
	if _, ok := focused.(*tview.InputField); ok {
		return ev
	}

	if a.registry.HandleEvent(page, ev) {
		return nil
	}
	return ev
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	a.vm.Start(a.ctx)
	defer a.vm.Stop()

	if a.opts.SignedIn {
		a.enterConversations()
	} else {
		a.showLogin()
	}

	go a.refreshLoop()
	return a.app.Run()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

func (a *App) refreshLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.vm.RefreshCh():
		case <-ticker.C:
		case <-a.ctx.Done():
			return
		}
		a.app.QueueUpdateDraw(a.render)
	}
}

// render copies view model state into the widgets. It runs on the UI goroutine.
func (a *App) render() {
	user := a.vm.User()
	convs := a.vm.Conversations()

	unread := 0
	for _, c := range convs {
		unread += c.UnreadCount
	}
	a.info.Update(&ui.SessionData{
		Profile:       a.opts.Profile,
		User:          user.Name,
		Email:         user.Email,
		Live:          a.live != nil && a.live.Connected(),
		Conversations: len(convs),
		Unread:        unread,
		Uptime:        time.Since(a.started),
	})

	a.statusBar.SetUser(user.Name)
	a.statusBar.SetState(a.vm.SubscriptionState())

	text, level := a.vm.Flash.Get()
	a.flash.Update(text, flashLevel(level))

	if a.pages.Contains(pageConversations) {
		a.list.SetDrafts(a.vm.Drafts())
		a.list.Update(convs)
	}
	if conv, ok := a.vm.Conversation(); ok {
		title := conv.OtherUser.Name
		if title == "" {
			title = fmt.Sprintf("Conversation %d", conv.ID)
		}
		a.thread.Update(views.ThreadState{
			Title:      title,
			Entries:    a.vm.Entries(),
			IsOutgoing: a.vm.IsOutgoing,
			Loading:    a.vm.Loading(),
			Error:      a.vm.Error(),
			Sending:    a.vm.Sending(),
		})
		a.thread.SetDraft(a.vm.Draft())
		a.crumbs.SetLabel(pageConversation, a.thread.Name())
	}
	if d, ok := a.vm.Details(); ok && a.pages.Current() == pageDetails {
		a.details.Update(d)
	}
	a.crumbs.Update(a.pages.Stack())
}

func (a *App) updateMenu() {
	var hints []ui.MenuHint
	if c, ok := a.components[a.pages.Current()]; ok {
		hints = append(hints, c.Hints()...)
	}
	if a.pages.Current() != pageLogin {
		hints = append(hints, a.registry.Hints("")...)
	}
	a.menu.Update(hints)
}

func (a *App) showLogin() {
	a.login.Reset()
	a.pages.Reset(pageLogin)
	a.app.SetFocus(a.login.Form())
}

func (a *App) signIn(email, password string) {
	a.login.SetBusy(true)
	go func() {
		_, err := a.auth.Login(a.ctx, email, password)
		a.app.QueueUpdateDraw(func() {
			a.login.SetBusy(false)
			if err != nil {
				a.login.ShowError(loginErrorText(err))
				return
			}
			a.enterConversations()
		})
	}()
}

func loginErrorText(err error) string {
	if api.IsUnauthorized(err) {
		return "Invalid email or password"
	}
	return "Sign in failed. Please try again later."
}

// enterConversations connects the push channel and shows the list.
func (a *App) enterConversations() {
	if a.live != nil {
		a.live.Start(a.ctx)
	}
	a.pages.Reset(pageConversations)
	a.app.SetFocus(a.list)
	a.render()
	go a.reloadConversations()
}

func (a *App) reloadConversations() {
	// Failures are flashed by the view model.
	_ = a.vm.LoadConversations(a.ctx)
}

func (a *App) openConversation(id int64) {
	a.vm.OpenConversation(a.ctx, id)
	a.showThread()
}

func (a *App) showThread() {
	a.pages.PopTo(pageConversations)
	a.pages.Push(pageConversation)
	a.app.SetFocus(a.thread.Messages())
	a.render()
}

func (a *App) pushPage(name string) {
	if name == pageDetails {
		d, ok := a.vm.Details()
		if !ok {
			return
		}
		a.details.Update(d)
	}
	a.pages.Push(name)
	a.app.SetFocus(a.pages)
}

func (a *App) back() {
	switch a.pages.Current() {
	case pageConversation:
		a.vm.CloseConversation()
		a.pages.Pop()
		a.app.SetFocus(a.list)
		go a.reloadConversations()
	case pageDetails, pageHelp:
		a.pages.Pop()
		a.focusCurrent()
	case pageConversations:
		if a.list.Filter() != "" {
			a.list.ClearFilter()
		}
	}
}

func (a *App) focusCurrent() {
	switch a.pages.Current() {
	case pageConversation:
		a.app.SetFocus(a.thread.Messages())
	case pageConversations:
		a.app.SetFocus(a.list)
	case pageLogin:
		a.app.SetFocus(a.login.Form())
	default:
		a.app.SetFocus(a.pages)
	}
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.promptActive = true
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.promptActive = false
	a.root.ResizeItem(a.prompt, 0, 0)
	a.focusCurrent()
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "new":
		id, err := cmd.ID()
		if err != nil {
			a.vm.Flash.SetLevel(model.FlashErr, err.Error(), 5*time.Second)
			return
		}
		go func() {
			_, err := a.vm.StartConversation(a.ctx, id)
			a.app.QueueUpdateDraw(func() {
				if err != nil {
					a.vm.Flash.SetLevel(model.FlashErr, startErrorText(err), 5*time.Second)
					a.render()
					return
				}
				a.showThread()
			})
		}()
	case "open":
		id, err := cmd.ID()
		if err != nil {
			a.vm.Flash.SetLevel(model.FlashErr, err.Error(), 5*time.Second)
			return
		}
		a.openConversation(id)
	case "reload", "r":
		go a.reloadConversations()
	case "logout":
		a.signOut()
	case "help", "h":
		a.pushPage(pageHelp)
	case "quit", "q":
		a.Stop()
	default:
		a.vm.Flash.SetLevel(model.FlashWarn, fmt.Sprintf("unknown command %q", cmd.Name), 5*time.Second)
	}
}

func startErrorText(err error) string {
	var se *api.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return "No such user"
	}
	return "Could not start the conversation"
}

func (a *App) signOut() {
	a.vm.CloseConversation()
	if a.live != nil {
		a.live.Stop()
	}
	go func() {
		err := a.auth.Logout(a.ctx)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.vm.Flash.SetLevel(model.FlashErr, "Sign out failed", 5*time.Second)
			}
			a.showLogin()
			a.render()
		})
	}()
}

func flashLevel(l model.FlashLevel) ui.FlashLevel {
	switch l {
	case model.FlashWarn:
		return ui.FlashWarn
	case model.FlashErr:
		return ui.FlashErr
	default:
		return ui.FlashInfo
	}
}
