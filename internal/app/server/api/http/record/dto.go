package record

import (
	"motium/internal/domain/record"
)

type listInput struct {
	Kind string `query:"kind" enum:"trip,expense,vehicle,work_schedule" doc:"Фильтр по типу записи"`
}

type listOutput struct {
	Body record.ListResponse
}

type createInput struct {
	Body record.CreateRequest
}

type idInput struct {
	ID string `path:"id" format:"uuid" doc:"ID записи"`
}

type updateInput struct {
	ID   string `path:"id" format:"uuid" doc:"ID записи"`
	Body record.UpdateRequest
}

type recordOutput struct {
	Body recordResponse
}

type recordResponse struct {
	Status string         `json:"status"`
	Record *record.Record `json:"record"`
}

type modifiedInput struct {
	Since string `query:"since" required:"true" doc:"RFC3339, изменения строго позже"`
}

type modifiedOutput struct {
	Body struct {
		Status  string          `json:"status"`
		Records []record.Record `json:"records"`
	}
}

type versionsOutput struct {
	Body struct {
		Status   string           `json:"status"`
		Versions []record.Version `json:"versions"`
	}
}
