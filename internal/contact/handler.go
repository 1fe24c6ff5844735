package contact

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/2beens/contactdesk/internal/telemetry/metrics"
	"github.com/2beens/contactdesk/internal/telemetry/tracing"
	"github.com/2beens/contactdesk/pkg"
)

const (
	SubmitPath      = "/contact"
	SuccessRedirect = "/#cont"
	msgRequired     = "Name and Email are required"
	msgFailedToSave = "Failed to save message"
)

var ErrValidation = errors.New("name and email are required")

type messageSaver interface {
	InsertContactMessage(ctx context.Context, name, email, phone, message string) (int, error)
}

type Submission struct {
	Name    string
	Email   string
	Phone   string
	Message string
}

// Validate only checks presence of the required fields.
func (s Submission) Validate() error {
	if s.Name == "" || s.Email == "" {
		return ErrValidation
	}
	return nil
}

type Handler struct {
	messages       messageSaver
	metricsManager *metrics.Manager
	storeTimeout   time.Duration
}

func NewHandler(
	messages messageSaver,
	metricsManager *metrics.Manager,
	storeTimeout time.Duration,
) *Handler {
	return &Handler{
		messages:       messages,
		metricsManager: metricsManager,
		storeTimeout:   storeTimeout,
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	mainRouter.HandleFunc(SubmitPath, handler.handleSubmit).Methods("POST").Name("contact-submit")
}

func (handler *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "contactHandler.submit")
	defer span.End()

	params, err := pkg.ReadParams(r, "name", "email", "phone", "message")
	if err != nil {
		log.Errorf("contact submit, read params: %s", err)
		span.SetStatus(codes.Error, "read-params")
		pkg.WriteResponse(w, pkg.ContentType.Text, msgRequired, http.StatusBadRequest)
		return
	}

	submission := Submission{
		Name:    params["name"],
		Email:   params["email"],
		Phone:   params["phone"],
		Message: params["message"],
	}
	if err := submission.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		pkg.WriteResponse(w, pkg.ContentType.Text, msgRequired, http.StatusBadRequest)
		return
	}

	storeCtx, cancel := context.WithTimeout(ctx, handler.storeTimeout)
	defer cancel()

	id, err := handler.messages.InsertContactMessage(
		storeCtx,
		submission.Name,
		submission.Email,
		submission.Phone,
		submission.Message,
	)
	if err != nil {
		log.Errorf("contact submit, save message: %s", err)
		span.SetStatus(codes.Error, "save-message")
		span.RecordError(err)
		pkg.WriteResponse(w, pkg.ContentType.Text, msgFailedToSave, http.StatusInternalServerError)
		return
	}

	if handler.metricsManager != nil {
		handler.metricsManager.CounterContactMessages.Inc()
	}

	span.SetAttributes(attribute.Int("message.id", id))
	span.SetStatus(codes.Ok, "ok")
	log.Tracef("new contact message saved: %d", id)

	http.Redirect(w, r, SuccessRedirect, http.StatusSeeOther)
}
