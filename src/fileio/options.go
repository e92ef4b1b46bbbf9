package fileio

import (
	"context"

	"github.com/mappichat/regions-atlas/src/project_types"
	"github.com/mappichat/regions-atlas/src/utils"
)

// LoadRenderOptions reads a JSON options file over the defaults, so a file
// only needs the fields it changes.
func LoadRenderOptions(filePath string) (project_types.RenderOptions, error) {
	options := project_types.DefaultRenderOptions
	if err := utils.ReadJsonFile(filePath, &options); err != nil {
		return project_types.DefaultRenderOptions, err
	}
	return options, nil
}

// LoadDatasetFile parses a JSON or CSV dataset from a path or URL.
func LoadDatasetFile(filePath string) (VisualizationData, error) {
	data, err := utils.ReadSource(context.Background(), filePath)
	if err != nil {
		return VisualizationData{}, err
	}
	return ParseDataset(data)
}
