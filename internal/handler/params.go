package handler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/pkg/errors"
	"github.com/jwalitptl/vetclinic-api/pkg/validator"
)

// PathID parses the named path parameter as a UUID
func PathID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, errors.NewBadRequest(fmt.Sprintf("invalid %s", name), err)
	}
	return id, nil
}

// QueryID parses an optional UUID query parameter
func QueryID(c *gin.Context, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, errors.NewBadRequest(fmt.Sprintf("invalid %s", name), err)
	}
	return &id, nil
}

// QueryTime parses an optional RFC 3339 query parameter
func QueryTime(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errors.NewBadRequest(fmt.Sprintf("%s must be an RFC 3339 timestamp", name), err)
	}
	return &t, nil
}

func QueryPagination(c *gin.Context) (model.Pagination, error) {
	var p model.Pagination
	for name, dst := range map[string]*int{"limit": &p.Limit, "offset": &p.Offset} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return p, errors.NewBadRequest(fmt.Sprintf("invalid %s", name), err)
		}
		*dst = n
	}
	return p.Normalize(), nil
}

// BindJSON decodes the body into req and runs struct validation
func BindJSON(c *gin.Context, v validator.Validator, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return MalformedBody(err)
	}
	return v.Validate(req)
}

// MalformedBody wraps a JSON decoding failure
func MalformedBody(err error) error {
	return errors.NewBadRequest("malformed request body", err)
}
