package commands

import (
	"context"
	"fmt"
)

func init() {
	register(Command{
		Name:        "read_file",
		Description: "read a file from the application data directory",
		Params: []ParamSpec{
			{Name: "path", Description: "path relative to the data directory"},
		},
		Handler: readFile,
	})
	register(Command{
		Name:        "write_file",
		Description: "write a file into the application data directory",
		Params: []ParamSpec{
			{Name: "path", Description: "path relative to the data directory"},
			{Name: "contents"},
		},
		Handler: writeFile,
	})
}

func readFile(ctx context.Context, env *Env, p Args) (string, error) {
	if env.DataDir == nil {
		return "", fmt.Errorf("the data directory is not set")
	}
	path, err := p.Required("path")
	if err != nil {
		return "", err
	}
	b, err := env.DataDir.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeFile(ctx context.Context, env *Env, p Args) (string, error) {
	if env.DataDir == nil {
		return "", fmt.Errorf("the data directory is not set")
	}
	path, err := p.Required("path")
	if err != nil {
		return "", err
	}
	if err := env.DataDir.WriteFile(path, []byte(p.String("contents"))); err != nil {
		return "", err
	}
	return "", nil
}
