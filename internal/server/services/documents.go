package services

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/profolio/profolio/internal/common"
	"github.com/profolio/profolio/internal/logging"
	sc "github.com/profolio/profolio/internal/server/config"
)

// PresignExpiry is how long presigned document URLs stay valid.
const PresignExpiry = 15 * time.Minute

const maxFileNameLength = 100

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// PresignedURL is a time-limited link to one object.
type PresignedURL struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DocumentService hands out presigned S3 URLs for property documents kept
// under a per-user prefix.
type DocumentService struct {
	config *sc.Config
	logger logging.Logger
	now    func() time.Time
}

func NewDocumentService(config *sc.Config, logger logging.Logger) *DocumentService {
	return &DocumentService{
		config: config,
		logger: logger.With("module", "documents"),
		now:    time.Now,
	}
}

// UserPrefix is the key prefix all of a user's documents live under.
func UserPrefix(userID string) string {
	return "users/" + userID + "/"
}

// StorageKey builds users/<uid>/<yyyy>/<mm>/<uuid>-<name> for filename.
func (s *DocumentService) StorageKey(userID, filename string) (string, error) {
	name := SanitizeFileName(filename)
	if name == "" {
		return "", fmt.Errorf("%w: file name is required", common.ErrorValidation)
	}
	d := s.now().UTC()
	return fmt.Sprintf("%s%04d/%02d/%s-%s", UserPrefix(userID), d.Year(), int(d.Month()), uuid.New(), name), nil
}

// SanitizeFileName keeps the base name and replaces anything outside
// [A-Za-z0-9._-] with underscores.
func SanitizeFileName(filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), `\`, "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	name = unsafeFileChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if len(name) > maxFileNameLength {
		name = name[len(name)-maxFileNameLength:]
	}
	return name
}

func (s *DocumentService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3AccessKey,
			s.config.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.config.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return newS3PresignClient(client), nil
}

// PresignUpload returns a PUT URL for a new document.
func (s *DocumentService) PresignUpload(ctx context.Context, userID, filename string) (*PresignedURL, error) {
	key, err := s.StorageKey(userID, filename)
	if err != nil {
		return nil, err
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		s.logger.Error(ctx, "s3 config failed", "error", err)
		return nil, common.ErrorInternal
	}

	bucket := s.config.S3Bucket
	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(PresignExpiry))
	if err != nil {
		s.logger.Error(ctx, "presign put failed", "error", err)
		return nil, common.ErrorInternal
	}

	return &PresignedURL{Key: key, URL: req.URL, Method: req.Method, ExpiresAt: s.now().Add(PresignExpiry)}, nil
}

// PresignDownload returns a GET URL for key, which must belong to userID.
func (s *DocumentService) PresignDownload(ctx context.Context, userID, key string) (*PresignedURL, error) {
	if !strings.HasPrefix(key, UserPrefix(userID)) || strings.Contains(key, "..") || userID == "" {
		return nil, common.ErrForbidden
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		s.logger.Error(ctx, "s3 config failed", "error", err)
		return nil, common.ErrorInternal
	}

	bucket := s.config.S3Bucket
	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(PresignExpiry))
	if err != nil {
		s.logger.Error(ctx, "presign get failed", "error", err)
		return nil, common.ErrorInternal
	}

	return &PresignedURL{Key: key, URL: req.URL, Method: req.Method, ExpiresAt: s.now().Add(PresignExpiry)}, nil
}
