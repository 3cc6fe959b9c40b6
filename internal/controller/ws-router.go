package controller

import (
	"github.com/sharetube/liveroom/internal/transport"
	"github.com/sharetube/liveroom/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.idleDeadlineWSMw(), c.loggerWSMw())
	mux.HandleError(c.handleWSError)

	mux.Handle(transport.EventAlive, c.handleAlive)
	mux.Handle(transport.EventStateUpdate, c.handleStateUpdate)

	return mux
}
