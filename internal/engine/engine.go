package engine

import (
	"github.com/tomnasc/treino-na-mao-sub000/internal/config"
	"github.com/tomnasc/treino-na-mao-sub000/internal/engine/controller"
	"github.com/tomnasc/treino-na-mao-sub000/internal/engine/localstore"
	"github.com/tomnasc/treino-na-mao-sub000/internal/engine/reconcile"
	"github.com/tomnasc/treino-na-mao-sub000/internal/engine/remote"
)

// Engine bundles the device-local session machinery for one user: the sqlite
// durability layer at ENGINE_DB_PATH and the session API client at
// REMOTE_BASE_URL, behind the controller façade.
type Engine struct {
	Controller *controller.Controller

	kv *localstore.SQLiteKV
}

func Open(cfg *config.Config, userID string, opts ...controller.Option) (*Engine, error) {
	kv, err := localstore.NewSQLiteKV(cfg.EngineDBPath)
	if err != nil {
		return nil, err
	}

	local := localstore.New(kv)
	client := remote.NewClient(cfg.RemoteBaseURL, userID)
	reconciler := reconcile.New(client, local)

	return &Engine{
		Controller: controller.New(local, client, reconciler, opts...),
		kv:         kv,
	}, nil
}

func (e *Engine) Close() error {
	e.Controller.Close()
	return e.kv.Close()
}
