package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/danmuck/pyserve/internal/calls"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// CallInfo is the admin listing entry for one call.
type CallInfo struct {
	Name  string `json:"name"`
	Arity int    `json:"arity"`
	Doc   string `json:"doc,omitempty"`
}

type invokeBody struct {
	Args []any `json:"args"`
}

// RegisterRoutes exposes the registry over the admin router:
// GET /calls lists calls, POST /calls/:name invokes one with {"args": [...]}.
func RegisterRoutes(r gin.IRoutes, registry *calls.Registry) {
	r.GET("/calls", func(c *gin.Context) {
		specs := registry.List()
		out := make([]CallInfo, 0, len(specs))
		for _, spec := range specs {
			out = append(out, CallInfo{Name: spec.Name, Arity: spec.Arity, Doc: spec.Doc})
		}
		c.JSON(http.StatusOK, gin.H{"calls": out})
	})

	r.POST("/calls/:name", func(c *gin.Context) {
		name := c.Param("name")
		args, err := decodeArgs(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ret, err := registry.Invoke(c.Request.Context(), name, args)
		if err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, calls.ErrUnknownCall):
				status = http.StatusNotFound
			case errors.Is(err, calls.ErrArity), errors.Is(err, calls.ErrBadArgument):
				status = http.StatusBadRequest
			}
			log.Warn().Str("call", name).Err(err).Msg("rpc admin invoke failed")
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"return": ret})
	})
}

// decodeArgs keeps JSON integers as int64 so calls see the same types they
// get over msgpack.
func decodeArgs(body io.Reader) ([]any, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()
	var in invokeBody
	if err := dec.Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	args := make([]any, len(in.Args))
	for i, arg := range in.Args {
		n, ok := arg.(json.Number)
		if !ok {
			args[i] = arg
			continue
		}
		if v, err := n.Int64(); err == nil {
			args[i] = v
		} else if f, err := n.Float64(); err == nil {
			args[i] = f
		} else {
			args[i] = n.String()
		}
	}
	return args, nil
}
