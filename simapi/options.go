package simapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum-optimism/infra/op-hivesim/types"
)

// clientSetup collects the launch options of a client container.
type clientSetup struct {
	config types.NodeConfig
	// destination path -> open data function
	files map[string]func() (io.ReadCloser, error)
}

func newClientSetup(clientType string) *clientSetup {
	return &clientSetup{
		config: types.NodeConfig{
			Client:      clientType,
			Environment: make(map[string]string),
		},
		files: make(map[string]func() (io.ReadCloser, error)),
	}
}

// StartOption is a parameter for starting a client.
type StartOption interface {
	apply(setup *clientSetup)
}

type optionFunc func(setup *clientSetup)

func (fn optionFunc) apply(setup *clientSetup) { fn(setup) }

// WithEnvironment adds environment variables to the client container. A nil map adds
// nothing.
func WithEnvironment(env map[string]string) StartOption {
	return optionFunc(func(setup *clientSetup) {
		for k, v := range env {
			setup.config.Environment[k] = v
		}
	})
}

// WithInitialNetworks sets the networks the client is connected to before it starts.
func WithInitialNetworks(networks []string) StartOption {
	return optionFunc(func(setup *clientSetup) {
		setup.config.Networks = append(setup.config.Networks, networks...)
		setup.config.Environment["NETWORKS"] = strings.Join(setup.config.Networks, ",")
	})
}

// WithStaticFiles adds files from the local filesystem to the client.
// Map: destination file path -> source file path.
func WithStaticFiles(initFiles map[string]string) StartOption {
	return optionFunc(func(setup *clientSetup) {
		for dst, src := range initFiles {
			setup.files[dst] = fileAsSrc(src)
		}
	})
}

// WithDynamicFile adds a file to a client, sourced from the given src function each
// time the client is started. Dynamic files override static files and vice versa,
// whichever option comes last.
func WithDynamicFile(dstPath string, src func() (io.ReadCloser, error)) StartOption {
	return optionFunc(func(setup *clientSetup) {
		setup.files[dstPath] = src
	})
}

// Bundle combines start options.
func Bundle(options ...StartOption) StartOption {
	return optionFunc(func(setup *clientSetup) {
		for _, opt := range options {
			if opt != nil {
				opt.apply(setup)
			}
		}
	})
}

func fileAsSrc(path string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return os.Open(path)
	}
}

// encode renders the setup as the multipart form expected by the node endpoint. The
// 'config' field comes first, followed by the files in path order.
func (setup *clientSetup) encode() ([]byte, string, error) {
	var (
		buf  bytes.Buffer
		form = multipart.NewWriter(&buf)
	)
	fw, err := form.CreateFormField("config")
	if err != nil {
		return nil, "", err
	}
	if err := json.NewEncoder(fw).Encode(&setup.config); err != nil {
		return nil, "", err
	}

	paths := make([]string, 0, len(setup.files))
	for path := range setup.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		fw, err := form.CreateFormFile(path, filepath.Base(path))
		if err != nil {
			return nil, "", err
		}
		r, err := setup.files[path]()
		if err != nil {
			return nil, "", err
		}
		_, err = io.Copy(fw, r)
		r.Close()
		if err != nil {
			return nil, "", err
		}
	}

	// Form must be closed or the request will be missing the terminating boundary.
	if err := form.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), form.FormDataContentType(), nil
}
