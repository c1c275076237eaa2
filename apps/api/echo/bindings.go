package echoapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// strictBinder binds JSON bodies only and rejects unknown fields.
// Query strings are bound explicitly with bindQuery.
type strictBinder struct {
	echo.DefaultBinder
}

func (b *strictBinder) Bind(i interface{}, ctx echo.Context) error {
	req := ctx.Request()
	if req.ContentLength == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "request body can't be empty")
	}
	if !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return echo.ErrUnsupportedMediaType
	}

	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(i); err != nil {
		switch e := err.(type) {
		case *json.UnmarshalTypeError:
			return echo.NewHTTPError(
				http.StatusBadRequest,
				fmt.Sprintf("%s: expected %v, got %v", e.Field, e.Type, e.Value),
			).SetInternal(err)
		case *json.SyntaxError:
			return echo.NewHTTPError(
				http.StatusBadRequest,
				fmt.Sprintf("syntax error at offset %d: %v", e.Offset, e.Error()),
			).SetInternal(err)
		}
		if err == io.EOF {
			return echo.NewHTTPError(http.StatusBadRequest, "request body can't be empty").SetInternal(err)
		}
		// unknown fields & invalid dates
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	if dec.More() {
		return echo.NewHTTPError(http.StatusBadRequest, "request body must hold a single JSON object")
	}
	return nil
}

func bindQuery(ctx echo.Context, filter interface{}) error {
	return new(echo.DefaultBinder).BindQueryParams(ctx, filter)
}
