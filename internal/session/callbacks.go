package session

import "github.com/tonimelisma/storj-go/internal/entry"

// Every callback below is invoked from the session's dispatch loop, one at a
// time, never from the goroutine that started the operation. Each logical
// request ends with exactly one terminal call: the success method or
// OnError.

// ErrorCallback receives the terminal failure of a request.
type ErrorCallback interface {
	OnError(err *OpError)
}

// BucketsCallback receives the result of ListBuckets.
type BucketsCallback interface {
	ErrorCallback
	OnBucketsReceived(buckets []entry.Entry)
}

// BucketCallback receives the result of GetBucket, once per ID for GetBuckets.
type BucketCallback interface {
	ErrorCallback
	OnBucketReceived(bucket entry.Entry)
}

// CreateBucketCallback receives the result of CreateBucket, once per name
// for CreateBuckets. Errors carry the requested name as subject.
type CreateBucketCallback interface {
	ErrorCallback
	OnBucketCreated(bucket entry.Entry)
}

// DeleteBucketCallback receives the result of DeleteBucket, once per ID for
// DeleteBuckets.
type DeleteBucketCallback interface {
	ErrorCallback
	OnBucketDeleted(bucketID string)
}

// IDCallback receives the result of GetBucketID and GetFileID.
type IDCallback interface {
	ErrorCallback
	OnIDReceived(name, id string)
}

// FilesCallback receives the flat listing of one bucket.
type FilesCallback interface {
	ErrorCallback
	OnFilesReceived(bucketID string, files []entry.Entry)
}

// FileCallback receives the result of GetFile, once per ID for GetFiles.
type FileCallback interface {
	ErrorCallback
	OnFileReceived(file entry.Entry)
}

// DeleteFileCallback receives the result of DeleteFile, once per ID for
// DeleteFiles.
type DeleteFileCallback interface {
	ErrorCallback
	OnFileDeleted(fileID string)
}

// Progress is a transfer progress notification.
type Progress struct {
	Fraction float64 // 0..1; 0 while the total is unknown
	Done     int64
	Total    int64
}

func newProgress(done, total int64) Progress {
	p := Progress{Done: done, Total: total}
	if total > 0 {
		p.Fraction = min(float64(done)/float64(total), 1)
	}

	return p
}

// DownloadCallback observes a download: zero or more progress calls, then
// OnDownloadComplete or OnError (subject = file ID).
type DownloadCallback interface {
	ErrorCallback
	OnDownloadProgress(fileID string, p Progress)
	OnDownloadComplete(fileID, localPath string)
}

// UploadCallback observes an upload: zero or more progress calls, then
// OnUploadComplete or OnError (subject = local path).
type UploadCallback interface {
	ErrorCallback
	OnUploadProgress(localPath string, p Progress)
	OnUploadComplete(localPath string, file entry.Entry)
}

// Funcs adapts plain functions to every callback interface. Nil fields are
// skipped, so callers set only what they need.
type Funcs struct {
	Error            func(err *OpError)
	BucketsReceived  func(buckets []entry.Entry)
	BucketReceived   func(bucket entry.Entry)
	BucketCreated    func(bucket entry.Entry)
	BucketDeleted    func(bucketID string)
	IDReceived       func(name, id string)
	FilesReceived    func(bucketID string, files []entry.Entry)
	FileReceived     func(file entry.Entry)
	FileDeleted      func(fileID string)
	DownloadProgress func(fileID string, p Progress)
	DownloadComplete func(fileID, localPath string)
	UploadProgress   func(localPath string, p Progress)
	UploadComplete   func(localPath string, file entry.Entry)
}

func (f Funcs) OnError(err *OpError) {
	if f.Error != nil {
		f.Error(err)
	}
}

func (f Funcs) OnBucketsReceived(buckets []entry.Entry) {
	if f.BucketsReceived != nil {
		f.BucketsReceived(buckets)
	}
}

func (f Funcs) OnBucketReceived(bucket entry.Entry) {
	if f.BucketReceived != nil {
		f.BucketReceived(bucket)
	}
}

func (f Funcs) OnBucketCreated(bucket entry.Entry) {
	if f.BucketCreated != nil {
		f.BucketCreated(bucket)
	}
}

func (f Funcs) OnBucketDeleted(bucketID string) {
	if f.BucketDeleted != nil {
		f.BucketDeleted(bucketID)
	}
}

func (f Funcs) OnIDReceived(name, id string) {
	if f.IDReceived != nil {
		f.IDReceived(name, id)
	}
}

func (f Funcs) OnFilesReceived(bucketID string, files []entry.Entry) {
	if f.FilesReceived != nil {
		f.FilesReceived(bucketID, files)
	}
}

func (f Funcs) OnFileReceived(file entry.Entry) {
	if f.FileReceived != nil {
		f.FileReceived(file)
	}
}

func (f Funcs) OnFileDeleted(fileID string) {
	if f.FileDeleted != nil {
		f.FileDeleted(fileID)
	}
}

func (f Funcs) OnDownloadProgress(fileID string, p Progress) {
	if f.DownloadProgress != nil {
		f.DownloadProgress(fileID, p)
	}
}

func (f Funcs) OnDownloadComplete(fileID, localPath string) {
	if f.DownloadComplete != nil {
		f.DownloadComplete(fileID, localPath)
	}
}

func (f Funcs) OnUploadProgress(localPath string, p Progress) {
	if f.UploadProgress != nil {
		f.UploadProgress(localPath, p)
	}
}

func (f Funcs) OnUploadComplete(localPath string, file entry.Entry) {
	if f.UploadComplete != nil {
		f.UploadComplete(localPath, file)
	}
}

// Compile-time interface assertions.
var (
	_ BucketsCallback      = Funcs{}
	_ BucketCallback       = Funcs{}
	_ CreateBucketCallback = Funcs{}
	_ DeleteBucketCallback = Funcs{}
	_ IDCallback           = Funcs{}
	_ FilesCallback        = Funcs{}
	_ FileCallback         = Funcs{}
	_ DeleteFileCallback   = Funcs{}
	_ DownloadCallback     = Funcs{}
	_ UploadCallback       = Funcs{}
)
