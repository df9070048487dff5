package company

import (
	"context"
	"errors"

	"motium/internal/app/server/api/http/middleware/auth"
	"motium/internal/domain/company"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

type Handler struct {
	service    company.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service company.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log.With("component", "company_handler"),
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.createProAccountOp(), h.createProAccount)
	huma.Register(api, h.getProAccountOp(), h.getProAccount)
	huma.Register(api, h.inviteOp(), h.invite)
	huma.Register(api, h.listLinksOp(), h.listLinks)
	huma.Register(api, h.revokeLinkOp(), h.revokeLink)
	huma.Register(api, h.linkedTripsOp(), h.linkedTrips)
	huma.Register(api, h.acceptOp(), h.accept)
	huma.Register(api, h.myLinksOp(), h.myLinks)
	huma.Register(api, h.addLicensesOp(), h.addLicenses)
	huma.Register(api, h.listLicensesOp(), h.listLicenses)
	huma.Register(api, h.assignLicenseOp(), h.assignLicense)
	huma.Register(api, h.unassignLicenseOp(), h.unassignLicense)
}

func currentUser(ctx context.Context) (int, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return 0, huma.Error401Unauthorized("Unauthorized")
	}
	return userID, nil
}

func (h *Handler) createProAccount(ctx context.Context, input *createProAccountInput) (*proAccountOutput, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	acc, err := h.service.CreateProAccount(ctx, userID, input.Body)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &proAccountOutput{Body: proAccountResponse{Status: "Ok", ProAccount: acc}}, nil
}

func (h *Handler) getProAccount(ctx context.Context, _ *struct{}) (*proAccountOutput, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	acc, err := h.service.GetProAccount(ctx, userID)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &proAccountOutput{Body: proAccountResponse{Status: "Ok", ProAccount: acc}}, nil
}

func (h *Handler) invite(ctx context.Context, input *inviteInput) (*invitationOutput, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	inv, err := h.service.InviteUser(ctx, userID, input.Body)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &invitationOutput{Body: invitationResponse{Status: "Ok", Invitation: inv}}, nil
}

func (h *Handler) listLinks(ctx context.Context, _ *struct{}) (*linksOutput, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	links, err := h.service.ListLinks(ctx, userID)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &linksOutput{Body: linksResponse{Status: "Ok", Links: links}}, nil
}

func (h *Handler) revokeLink(ctx context.Context, input *linkIDInput) (*statusOutput, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	if err := h.service.RevokeLink(ctx, userID, input.ID); err != nil {
		return nil, h.mapError(err)
	}
	return ok(), nil
}

func (h *Handler) linkedTrips(ctx context.Context, input *linkIDInput) (*tripsOutput, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	trips, err := h.service.LinkedTrips(ctx, userID, input.ID)
	if err != nil {
		return nil, h.mapError(err)
	}

	out := &tripsOutput{}
	out.Body.Status = "Ok"
	out.Body.Trips = trips
	return out, nil
}

func (h *Handler) accept(ctx context.Context, input *acceptInput) (*linkOutput, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	link, err := h.service.AcceptInvitation(ctx, userID, input.Body.Token)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &linkOutput{Body: linkResponse{Status: "Ok", Link: link}}, nil
}

func (h *Handler) myLinks(ctx context.Context, _ *struct{}) (*linksOutput, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	links, err := h.service.ListMyLinks(ctx, userID)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &linksOutput{Body: linksResponse{Status: "Ok", Links: links}}, nil
}

func (h *Handler) addLicenses(ctx context.Context, input *addLicensesInput) (*licensesOutput, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	licenses, err := h.service.AddLicenses(ctx, userID, input.Body.Count)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &licensesOutput{Body: licensesResponse{Status: "Ok", Licenses: licenses}}, nil
}

func (h *Handler) listLicenses(ctx context.Context, _ *struct{}) (*licensesOutput, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	licenses, err := h.service.ListLicenses(ctx, userID)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &licensesOutput{Body: licensesResponse{Status: "Ok", Licenses: licenses}}, nil
}

func (h *Handler) assignLicense(ctx context.Context, input *assignInput) (*statusOutput, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	if err := h.service.AssignLicense(ctx, userID, input.ID, input.Body.LinkID); err != nil {
		return nil, h.mapError(err)
	}
	return ok(), nil
}

func (h *Handler) unassignLicense(ctx context.Context, input *licenseIDInput) (*statusOutput, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	if err := h.service.UnassignLicense(ctx, userID, input.ID); err != nil {
		return nil, h.mapError(err)
	}
	return ok(), nil
}

func ok() *statusOutput {
	out := &statusOutput{}
	out.Body.Status = "Ok"
	return out
}

func (h *Handler) mapError(err error) error {
	switch {
	case errors.Is(err, company.ErrInvalidInput):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, company.ErrProAccountNotFound),
		errors.Is(err, company.ErrLinkNotFound),
		errors.Is(err, company.ErrLicenseNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, company.ErrProAccountExists),
		errors.Is(err, company.ErrLinkExists),
		errors.Is(err, company.ErrSelfLink),
		errors.Is(err, company.ErrLicenseUnavailable),
		errors.Is(err, company.ErrLinkHasLicense),
		errors.Is(err, company.ErrLinkNotActive):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, company.ErrInvalidToken):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, company.ErrEmailMismatch), errors.Is(err, company.ErrTripsNotShared):
		return huma.Error403Forbidden(err.Error())
	}
	h.log.Error("company operation failed", "error", err)
	return huma.Error500InternalServerError("internal error")
}
