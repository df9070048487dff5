package health

type Input struct{}

type Output struct {
	Body Response
}

type Response struct {
	Status   string `json:"status" example:"OK" doc:"Health status of the service"`
	Database string `json:"database" example:"up" doc:"Состояние базы данных"`
}
