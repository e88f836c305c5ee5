package oraexec

import (
	"context"
	"errors"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// Pool keeps one database handle per driver and connection string, every
// handle is a database/sql pool sized by ConnectionConfiguration
type Pool struct {
	Items         map[string]*sqlx.DB
	configuration *ConnectionConfiguration
	log           *zerolog.Logger
	lock          *sync.Mutex
}

func NewPool(configuration *ConnectionConfiguration, log *zerolog.Logger) *Pool {
	return &Pool{
		Items:         make(map[string]*sqlx.DB),
		configuration: configuration,
		log:           loggerOrNop(log),
		lock:          &sync.Mutex{},
	}
}

// Get returns the database for the connection string, opening it on first use
func (p *Pool) Get(ctx context.Context, driver, constr string) (*sqlx.DB, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	key := driver + "|" + constr
	if db, ok := p.Items[key]; ok {
		return db, nil
	}

	p.log.Info().Str("driver", driver).Msg("+++ Nuevo Pool de Conexiones")
	db, err := createConnection(ctx, driver, constr, p.configuration, p.log)
	if err != nil {
		p.log.Err(err).Msg("apertura de conexión del pool no pudo realizarse")
		return nil, err
	}
	p.Items[key] = db
	return db, nil
}

// Len number of open databases
func (p *Pool) Len() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.Items)
}

// Close closes every database of the pool
func (p *Pool) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	var errs []error
	for key, db := range p.Items {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(p.Items, key)
	}
	return errors.Join(errs...)
}
