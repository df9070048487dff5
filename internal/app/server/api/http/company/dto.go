package company

import (
	"motium/internal/domain/company"
	"motium/internal/domain/record"
)

type createProAccountInput struct {
	Body company.CreateProAccountRequest
}

type proAccountOutput struct {
	Body proAccountResponse
}

type proAccountResponse struct {
	Status     string              `json:"status"`
	ProAccount *company.ProAccount `json:"pro_account"`
}

type inviteInput struct {
	Body company.InviteRequest
}

type invitationOutput struct {
	Body invitationResponse
}

type invitationResponse struct {
	Status     string              `json:"status"`
	Invitation *company.Invitation `json:"invitation"`
}

type acceptInput struct {
	Body struct {
		Token string `json:"token" minLength:"1" doc:"Токен из приглашения"`
	}
}

type linkIDInput struct {
	ID int `path:"id" minimum:"1"`
}

type linkOutput struct {
	Body linkResponse
}

type linkResponse struct {
	Status string        `json:"status"`
	Link   *company.Link `json:"link"`
}

type linksOutput struct {
	Body linksResponse
}

type linksResponse struct {
	Status string         `json:"status"`
	Links  []company.Link `json:"links"`
}

type addLicensesInput struct {
	Body struct {
		Count int `json:"count" minimum:"1" maximum:"100"`
	}
}

type licensesOutput struct {
	Body licensesResponse
}

type licensesResponse struct {
	Status   string            `json:"status"`
	Licenses []company.License `json:"licenses"`
}

type assignInput struct {
	ID   int `path:"id" minimum:"1" doc:"ID лицензии"`
	Body struct {
		LinkID int `json:"link_id" minimum:"1"`
	}
}

type licenseIDInput struct {
	ID int `path:"id" minimum:"1" doc:"ID лицензии"`
}

type statusOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

type tripsOutput struct {
	Body struct {
		Status string          `json:"status"`
		Trips  []record.Record `json:"trips"`
	}
}
