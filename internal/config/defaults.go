package config

const (
	defaultWorkspaceRoot      = "~/workspaces/" + UserPlaceholder
	defaultWorkSubdir         = "reduce_channel_tool_folders"
	defaultLogDir             = "~/.local/share/layerreduce/logs"
	defaultCatalogPath        = "~/.local/share/layerreduce/catalog.db"
	defaultExportFolder       = "taLayerExport"
	defaultTaskName           = "TA Layer Export"
	defaultPublishDescription = "Publish project folder after reduced channels layers process"
	defaultOmittedStatus      = "omt"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceRoot: defaultWorkspaceRoot,
			WorkSubdir:    defaultWorkSubdir,
			LogDir:        defaultLogDir,
			CatalogPath:   defaultCatalogPath,
		},
		Pipeline: Pipeline{
			ExportFolder:       defaultExportFolder,
			TaskName:           defaultTaskName,
			Publish:            true,
			PublishDescription: defaultPublishDescription,
			OmittedStatus:      defaultOmittedStatus,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
