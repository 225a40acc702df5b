// Memvid CI
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
package main

import (
	"context"

	"dagger/memvid/internal/dagger"
)

// Memvid is the main module for the memvid CI pipeline
type Memvid struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Memvid CI module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".memvid", "build", "tmp", "_examples"]
	source *dagger.Directory,
) *Memvid {
	return &Memvid{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with gcc,
// CGO enabled, and the project source mounted. CGO is required by the
// sqlite-vec index backend.
func (m *Memvid) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", m.Source)
}

// Test runs the memvid unit tests via "go test"
func (m *Memvid) Test(ctx context.Context) (string, error) {
	return m.goContainer().
		WithExec([]string{"go", "test", "./..."}).
		Stdout(ctx)
}

// TestRace runs the unit tests with the race detector. The retriever, frame
// cache, and worker pool are exercised concurrently by their suites.
func (m *Memvid) TestRace(ctx context.Context) (string, error) {
	return m.goContainer().
		WithExec([]string{"go", "test", "-race", "./pkg/..."}).
		Stdout(ctx)
}
