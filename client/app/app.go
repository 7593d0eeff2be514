package app

import (
	"fmt"

	chatsvc "cleanmatch_client/client/chat/service"
	"cleanmatch_client/client/common/gateway"
	"cleanmatch_client/client/common/keystore"
	directorysvc "cleanmatch_client/client/directory/service"
	realtimesvc "cleanmatch_client/client/realtime/service"
	reservationsvc "cleanmatch_client/client/reservation/service"
	sessiondomain "cleanmatch_client/client/session/domain"
	sessionsvc "cleanmatch_client/client/session/service"
)

// App wires the stores together. The session store is the gateway's token
// source and the only component driving the realtime channel's lifecycle;
// the app rebinds chat's handlers on every identity change.
type App struct {
	Config       Config
	Keystore     *keystore.Store
	Gateway      *gateway.Client
	Session      *sessionsvc.Service
	Directory    *directorysvc.Service
	Reservations *reservationsvc.Service
	Chat         *chatsvc.Service
	Realtime     *realtimesvc.Manager
}

func New(cfg Config) (*App, error) {
	ks, err := keystore.Open(cfg.KeystorePath)
	if err != nil {
		return nil, fmt.Errorf("open keystore: %w", err)
	}

	rt := realtimesvc.NewManager(cfg.APIBaseURL)
	sess := sessionsvc.NewService(ks, rt)
	gw := gateway.NewClient(cfg.APIBaseURL, sess)
	sess.UseGateway(gw)

	a := &App{
		Config:       cfg,
		Keystore:     ks,
		Gateway:      gw,
		Session:      sess,
		Directory:    directorysvc.NewService(gw, sess),
		Reservations: reservationsvc.NewService(gw, sess),
		Chat:         chatsvc.NewService(gw, sess),
		Realtime:     rt,
	}
	sess.OnChange(a.handleAuthChange)
	return a, nil
}

func (a *App) handleAuthChange(profile *sessiondomain.Identity) {
	if profile == nil {
		a.Realtime.Unbind()
		a.Chat.Clear()
		a.Chat.ClearThreads()
		return
	}
	a.Realtime.Bind(profile.ID, realtimesvc.Handlers{
		OnMessage: a.Chat.ReceiveSocket,
		OnHistory: a.Chat.ReceiveHistory,
		OnError:   a.Chat.ReceiveChannelError,
		OnConnectError: func(err error) {
			a.Chat.ReceiveChannelError(err.Error())
		},
	})
}

func (a *App) Shutdown() error {
	a.Realtime.Disconnect()
	return a.Keystore.Close()
}
