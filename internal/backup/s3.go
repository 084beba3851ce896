package backup

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const defaultRegion = "us-east-1"

// S3Uploader ships backups with `aws s3 cp`. Objects are filed by UTC day
// under the bucket prefix, e.g. pulse/2025/03/10/pulse-20250310-120000.duckdb.
type S3Uploader struct {
	target s3Target
	cfg    S3Config
	run    func(ctx context.Context, args, env []string) ([]byte, error)
}

type s3Target struct {
	bucket string
	prefix string
}

var lookPath = exec.LookPath

// NewS3Uploader checks cfg and that the aws CLI is installed.
func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	target, err := parseS3Target(cfg.BucketURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("s3: access key and secret key are required")
	}
	if _, err := lookPath("aws"); err != nil {
		return nil, fmt.Errorf("s3: aws cli not found in PATH: %w", err)
	}
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = defaultRegion
	}
	return &S3Uploader{target: target, cfg: cfg, run: runAWS}, nil
}

// Upload copies localPath to its day partition and tags the object with the
// time the backup was taken.
func (u *S3Uploader) Upload(ctx context.Context, localPath string, takenAt time.Time) error {
	dest := u.target.url(filepath.Base(localPath), takenAt)
	args, env := u.command(localPath, dest, takenAt)
	if out, err := u.run(ctx, args, env); err != nil {
		return fmt.Errorf("s3 upload %s: %w: %s", dest, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (u *S3Uploader) command(localPath, dest string, takenAt time.Time) (args, env []string) {
	args = []string{
		"s3", "cp", localPath, dest,
		"--region", u.cfg.Region,
		"--metadata", "taken-at=" + takenAt.UTC().Format(time.RFC3339),
		"--only-show-errors",
	}
	if endpoint := endpointURL(u.cfg.Endpoint, u.cfg.UseSSL); endpoint != "" {
		args = append(args, "--endpoint-url", endpoint)
	}

	// Ambient profiles and keys would override the configured credentials.
	for _, kv := range os.Environ() {
		if k, _, _ := strings.Cut(kv, "="); strings.HasPrefix(k, "AWS_") {
			continue
		}
		env = append(env, kv)
	}
	env = append(env,
		"AWS_ACCESS_KEY_ID="+u.cfg.AccessKey,
		"AWS_SECRET_ACCESS_KEY="+u.cfg.SecretKey,
		"AWS_DEFAULT_REGION="+u.cfg.Region,
	)
	if token := strings.TrimSpace(u.cfg.SessionToken); token != "" {
		env = append(env, "AWS_SESSION_TOKEN="+token)
	}
	return args, env
}

func runAWS(ctx context.Context, args, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "aws", args...)
	cmd.Env = env
	return cmd.CombinedOutput()
}

// url returns the object URL for file taken at takenAt.
func (t s3Target) url(file string, takenAt time.Time) string {
	key := path.Join(t.prefix, takenAt.UTC().Format("2006/01/02"), file)
	return "s3://" + t.bucket + "/" + key
}

func endpointURL(endpoint string, useSSL bool) string {
	endpoint = strings.TrimSpace(endpoint)
	switch {
	case endpoint == "":
		return ""
	case strings.HasPrefix(endpoint, "http://"), strings.HasPrefix(endpoint, "https://"):
		return endpoint
	case useSSL:
		return "https://" + endpoint
	default:
		return "http://" + endpoint
	}
}

func parseS3Target(raw string) (s3Target, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return s3Target{}, fmt.Errorf("s3: parse bucket-url: %w", err)
	}
	if u.Scheme != "s3" {
		return s3Target{}, errors.New("s3: bucket-url must use s3:// scheme")
	}
	if strings.TrimSpace(u.Host) == "" {
		return s3Target{}, errors.New("s3: bucket-url missing bucket name")
	}
	return s3Target{bucket: u.Host, prefix: strings.Trim(u.Path, "/")}, nil
}
