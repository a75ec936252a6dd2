package transport

// DialogHandler opens native file dialogs.
type DialogHandler interface {
	OpenDocumentDialog() (string, error)
	OpenImagesDialog() ([]string, error)
	ShowSaveDialog(filename string) (string, error)
}

// Emitter publishes named events to the frontend.
type Emitter interface {
	Emit(name string, data ...any)
}

// AppStatus describes the running application.
type AppStatus struct {
	Status           string `json:"status"`
	Framework        string `json:"framework"`
	AppName          string `json:"app_name"`
	DocumentPath     string `json:"document_path"`
	ImageDir         string `json:"image_dir"`
	DatabasePath     string `json:"database_path"`
	MaxWorkers       int    `json:"max_workers"`
	WorkingDirectory string `json:"working_directory"`
}
