// Package gcsvfs implements the Filesystem Provider (spec §4.E): the
// process-wide registry of Filesystem Instances keyed by bucket, URI
// parsing, credential resolution, and the dispatch entry point for every
// public file operation. It is grounded on how the teacher's fs.NewFs /
// fs.ConfigMap wires a single named remote into an fs.Fs, generalized
// here into a registry holding one Filesystem per bucket rather than one
// remote per config section.
package gcsvfs

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/gcsfs/gcsfs/gcserrors"
	"github.com/gcsfs/gcsfs/gcsfs"
	"github.com/gcsfs/gcsfs/gcspath"
	"github.com/gcsfs/gcsfs/gcsstorage"
	"github.com/gcsfs/gcsfs/gcsstorage/google"
)

// Config is the configuration map recognized by NewFileSystem / GetPath,
// see spec §6.
type Config struct {
	Credentials     []byte // explicit service-account key bytes
	CredentialsFile string
	ProjectID       string
	Location        string // bucket location for CreateDirectory of a bucket root
	StorageClass    string
}

// ClientFactory dials a gcsstorage.Client for the resolved credentials.
// NewProvider defaults to google.NewClient; tests substitute a fake.
type ClientFactory func(ctx context.Context, cfg Config) (gcsstorage.Client, error)

// Provider is the process-wide registry of Filesystem Instances. The
// zero value is not usable; use NewProvider.
type Provider struct {
	mu          sync.Mutex
	filesystems map[string]*gcsfs.FileSystem // bucket -> instance, "" is the root
	clients     map[string]gcsstorage.Client // memoized per (credentials, projectId)
	newClient   ClientFactory
	log         *logrus.Entry
}

// Option configures a Provider at construction time.
type Option func(*Provider)

// WithClientFactory overrides how a gcsstorage.Client is dialed, for
// tests that want to inject gcsstorage/fake instead of a live project.
func WithClientFactory(f ClientFactory) Option {
	return func(p *Provider) { p.newClient = f }
}

// WithLogger overrides the log entry used for Provider-level messages.
func WithLogger(log *logrus.Entry) Option {
	return func(p *Provider) { p.log = log }
}

// NewProvider builds an empty registry.
func NewProvider(options ...Option) *Provider {
	p := &Provider{
		filesystems: make(map[string]*gcsfs.FileSystem),
		clients:     make(map[string]gcsstorage.Client),
		log:         logrus.NewEntry(logrus.StandardLogger()),
	}
	p.newClient = func(ctx context.Context, cfg Config) (gcsstorage.Client, error) {
		return google.NewClient(ctx, google.Config{
			CredentialsJSON: cfg.Credentials,
			CredentialsFile: cfg.CredentialsFile,
			ProjectID:       cfg.ProjectID,
			Log:             p.log,
		})
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// resolveCredentials applies spec §4.E's precedence: explicit config,
// then environment variables, then implicit/default credentials (left to
// the ClientFactory when neither of the first two supplies anything).
func resolveCredentials(cfg Config) Config {
	if len(cfg.Credentials) > 0 || cfg.CredentialsFile != "" {
		return cfg
	}
	if envFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); envFile != "" {
		cfg.CredentialsFile = envFile
		if cfg.ProjectID == "" {
			cfg.ProjectID = os.Getenv("GOOGLE_PROJECT_ID")
		}
		return cfg
	}
	return cfg
}

func clientKey(cfg Config) string {
	return string(cfg.Credentials) + "|" + cfg.CredentialsFile + "|" + cfg.ProjectID
}

func (p *Provider) clientFor(ctx context.Context, cfg Config) (gcsstorage.Client, error) {
	cfg = resolveCredentials(cfg)
	key := clientKey(cfg)

	p.mu.Lock()
	if c, ok := p.clients[key]; ok {
		p.mu.Unlock()
		p.log.Debug("client registry: cache hit")
		return c, nil
	}
	p.mu.Unlock()
	p.log.Debug("client registry: cache miss, dialing new client")

	c, err := p.newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.clients[key]; ok {
		return existing, nil
	}
	p.clients[key] = c
	return c, nil
}

// GetFileSystem returns the registered instance for bucket, or
// FileSystemNotFound if none has been created yet.
func (p *Provider) GetFileSystem(bucket string) (*gcsfs.FileSystem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fs, ok := p.filesystems[bucket]
	if !ok {
		return nil, gcserrors.FileSystemNotFound(bucket)
	}
	return fs, nil
}

// NewFileSystem creates and registers a fresh instance for bucket, or
// raises FileSystemAlreadyExists if one is already bound.
func (p *Provider) NewFileSystem(ctx context.Context, bucket string, cfg Config) (*gcsfs.FileSystem, error) {
	client, err := p.clientFor(ctx, cfg)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.filesystems[bucket]; ok {
		return nil, gcserrors.FileSystemAlreadyExists(bucket)
	}
	fs := gcsfs.New(bucket, client, cfg.ProjectID, cfg.Location, cfg.StorageClass, gcsfs.WithLogger(p.log))
	p.filesystems[bucket] = fs
	return fs, nil
}

// getOrCreate auto-creates the filesystem for bucket on first demand,
// the behaviour GetPath relies on.
func (p *Provider) getOrCreate(ctx context.Context, bucket string, cfg Config) (*gcsfs.FileSystem, error) {
	if fs, err := p.GetFileSystem(bucket); err == nil {
		p.log.WithField("bucket", bucket).Debug("filesystem registry: cache hit")
		return fs, nil
	}
	p.log.WithField("bucket", bucket).Debug("filesystem registry: cache miss, creating filesystem")
	fs, err := p.NewFileSystem(ctx, bucket, cfg)
	if err != nil && gcserrors.IsKind(err, gcserrors.KindFileSystemAlreadyExists) {
		return p.GetFileSystem(bucket)
	}
	return fs, err
}

// root lazily creates the special bucket-enumerating instance.
func (p *Provider) root(ctx context.Context, cfg Config) (*gcsfs.FileSystem, error) {
	return p.getOrCreate(ctx, "", cfg)
}

// ParseURI implements spec §4.E/§6's URI syntax: scheme must be "gs"
// (case-insensitive), authority is the bucket (lowercased). An empty
// authority is only valid with path "/", which selects the global root.
func ParseURI(uri string) (scheme, bucket, key string, dirHint bool, err error) {
	lower := strings.ToLower(uri)
	if !strings.HasPrefix(lower, "gs://") {
		return "", "", "", false, gcserrors.IllegalArgument(uri, "missing gs:// scheme")
	}
	rest := uri[len("gs://"):]
	slash := strings.IndexByte(rest, '/')
	var authority, path string
	if slash < 0 {
		authority, path = rest, ""
	} else {
		authority, path = rest[:slash], rest[slash:]
	}
	authority = strings.ToLower(authority)

	if authority == "" {
		if path == "" || path == "/" {
			return "gs", "", "", true, nil
		}
		return "", "", "", false, gcserrors.IllegalArgument(uri, "missing bucket authority")
	}

	dirHint = strings.HasSuffix(path, "/") || path == ""
	trimmed := strings.Trim(path, "/")
	return "gs", authority, trimmed, dirHint, nil
}

// GetPath parses uri and returns the corresponding Path, auto-creating
// the owning filesystem (for a non-root bucket) on first demand.
func (p *Provider) GetPath(ctx context.Context, uri string, cfg Config) (gcspath.Path, error) {
	_, bucket, key, dirHint, err := ParseURI(uri)
	if err != nil {
		return gcspath.Path{}, err
	}
	if bucket == "" {
		fs, err := p.root(ctx, cfg)
		if err != nil {
			return gcspath.Path{}, err
		}
		return gcspath.GlobalRoot(fs), nil
	}
	fs, err := p.getOrCreate(ctx, bucket, cfg)
	if err != nil {
		return gcspath.Path{}, err
	}
	var names []string
	if key != "" {
		names = strings.Split(key, "/")
	}
	return gcspath.NewAbsolute(fs, bucket, names, dirHint), nil
}

func (p *Provider) owningFileSystem(path gcspath.Path) (*gcsfs.FileSystem, error) {
	if path.IsGlobalRoot() {
		return p.GetFileSystem("")
	}
	return p.GetFileSystem(path.Bucket())
}

func requireNonRoot(path gcspath.Path) error {
	if path.IsGlobalRoot() {
		return gcserrors.IllegalArgument("/", "operation not supported on the global root")
	}
	return nil
}
