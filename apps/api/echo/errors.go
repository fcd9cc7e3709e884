package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/activity"
	"github.com/adribv/edutool/core/permission"
)

var (
	errUnauthorized = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpNotFound = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that turns every error into an ErrorResponse.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		res := ErrorResponse{}
		var code int

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = errUnauthorized.Code
				res.Message = errUnauthorized.Message.(string)
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			if msg, ok := origErr.Message.(string); ok {
				res.Message = msg
			} else {
				res.Message = http.StatusText(code)
				res.Error = origErr.Message
			}
			if code >= http.StatusInternalServerError && origErr.Internal != nil {
				logger.Error(res.Message, errors.Wrap(origErr.Internal, res.Message), contextPerson(ctx))
			}
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			res.Message = "validation failed"
			res.Error = fldErrs
		case *core.ValidationError:
			code = http.StatusBadRequest
			res.Message = origErr.Error()
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				res.Error = fldErrs
			}
		default:
			switch origErr {
			case permission.ErrNotFound, activity.ErrNotFound, permission.ErrStaffNotFound, activity.ErrStaffNotFound:
				code = http.StatusNotFound
				res.Message = origErr.Error()
			case core.ErrVersionConflict:
				code = http.StatusConflict
				res.Message = origErr.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				res.Message = http.StatusText(code)
				logger.Error(res.Message, errors.Wrap(err, res.Message), contextPerson(ctx))

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && res.Error == nil {
			res.Error = err.Error()
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, res)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

func contextPerson(ctx echo.Context) core.LogPerson {
	claims, _ := getContextClaims(ctx)
	return claims.person()
}
