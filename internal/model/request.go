package model

type DeployRequest struct {
	Binary     string `json:"binary" binding:"required"`
	Instance   string `json:"instance"`
	AppPath    string `json:"appPath"`
	BinaryArgs string `json:"binaryArgs"`
	Vars       string `json:"vars"`
	Headless   bool   `json:"headless"`
	EnvVars    string `json:"envVars"`
}

type TerminateRequest struct {
	Instance string `json:"instance"`
	Process  string `json:"process" binding:"required"`
}

type FetchRequest struct {
	Instance    string   `json:"instance"`
	Sources     []string `json:"sources" binding:"required,min=1"`
	Destination string   `json:"destination" binding:"required"`
}
