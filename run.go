package oraexec

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Request is everything needed for one execution
type Request struct {
	SQL         string
	Params      []Param
	Credentials Credentials
	Options     ExecOptions
}

// Runner executes requests: acquire a connection, compile the binds, execute,
// resolve output binds and release the connection
type Runner struct {
	acquirer Acquirer
	config   Config
	log      *zerolog.Logger
}

// NewRunner creates a Runner, zero values of config are replaced by defaults
// Parameters:
// @acquirer: source of connections, usually NewOracleAcquirer
// @config: limits applied to every execution
// @log: In this version *zerolog.Logger is required, nil disables logging
func NewRunner(acquirer Acquirer, config Config, log *zerolog.Logger) *Runner {
	return &Runner{
		acquirer: acquirer,
		config:   config.withDefaults(),
		log:      loggerOrNop(log),
	}
}

// Run executes the request and returns the normalized record. The connection
// is always released, a failure while releasing it is only logged.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	r.log.Debug().Msgf("+++ Hit Run for [%v]", req.SQL)
	r.log.Debug().Msgf("+++ number of parameters [%v]", len(req.Params))

	if strings.TrimSpace(req.SQL) == "" {
		return nil, EmptyStatementErr
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.StatementTimeout)
	defer cancel()

	exec, err := r.acquirer.Acquire(ctx, req.Credentials)
	if err != nil {
		r.log.Err(err).Msg("Error obteniendo la conexión")
		return nil, err
	}
	defer func() {
		if err := exec.Close(); err != nil {
			r.log.Err(err).Msg("Error closing connection")
		}
	}()

	compiled, err := CompileBinds(req.SQL, req.Params, WithMaxOutputSize(r.config.MaxOutputSize))
	if err != nil {
		r.log.Err(err).Msg("Error compilando parámetros")
		return nil, err
	}
	for _, name := range compiled.Order {
		b := compiled.Binds[name]
		r.log.Debug().Msgf("+++ Bind [%v] - %v %v", name, b.Direction, b.WireType)
	}

	opts := req.Options
	if opts.MaxRows <= 0 {
		opts.MaxRows = r.config.MaxRows
	}

	raw, err := exec.Execute(ctx, compiled, opts)
	if err != nil {
		r.log.Err(err).Msgf("Error ejecutando el statement [%v]", compiled.SQL)
		return nil, err
	}

	outBinds, err := Normalize(ctx, raw.OutBinds, r.config.CursorPageSize)
	if err != nil {
		r.log.Err(err).Msg("Error leyendo los cursores")
		return nil, err
	}

	return &Result{
		MetaData:     raw.MetaData,
		Rows:         raw.Rows,
		RowsAffected: raw.RowsAffected,
		LastRowID:    raw.LastRowID,
		OutBinds:     outBinds,
	}, nil
}
