package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"

	"github.com/iancoleman/strcase"
	"github.com/mitchellh/mapstructure"
)

// DecodeSnakeCase flattens a struct or map into a map keyed by snake_case names.
func DecodeSnakeCase(input interface{}) (map[string]interface{}, error) {
	output := map[string]interface{}{}
	if err := mapstructure.Decode(input, &output); err != nil {
		return nil, err
	}
	newOut := map[string]interface{}{}
	for k, v := range output {
		newOut[strcase.ToSnake(k)] = v
	}
	return newOut, nil
}

func WriteAsJsonFile(v interface{}, filePath string) error {
	bytes, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return WriteFile(bytes, filePath)
}

// WriteFile writes bytes to filePath, creating parent directories.
func WriteFile(bytes []byte, filePath string) error {
	base := path.Base(filePath)
	dirPath := filePath[:len(filePath)-len(base)]
	if dirPath != "" {
		if err := os.MkdirAll(dirPath, os.ModePerm); err != nil {
			return err
		}
	}

	log.Printf("writing %s", filePath)
	return os.WriteFile(filePath, bytes, 0644)
}

func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// ReadSource returns the contents of a local file, or GETs filePath when it
// is not a file but parses as a URL.
func ReadSource(ctx context.Context, filePath string) ([]byte, error) {
	if FileExists(filePath) {
		return os.ReadFile(filePath)
	}

	u, err := url.ParseRequestURI(filePath)
	if err != nil || u.Scheme == "" {
		return nil, fmt.Errorf("%s is neither a file nor a url", filePath)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected http GET status: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func ReadJsonFile(filePath string, dest interface{}) error {
	bytes, err := ReadSource(context.Background(), filePath)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, dest)
}
