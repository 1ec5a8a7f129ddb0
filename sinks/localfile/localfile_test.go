package localfile_test

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/statsdecoder"
	"github.com/stripe/statsdecoder/protocol/statsd"
	"github.com/stripe/statsdecoder/sinks/localfile"
	"github.com/stripe/statsdecoder/testhelpers"
)

func sampleRate(rate float64) *float64 {
	return &rate
}

var metrics = []statsd.Metric{{
	Name:      "a.b.c",
	Value:     100,
	Type:      statsd.GaugeMetric,
	Sender:    netip.MustParseAddrPort("10.0.0.7:50312"),
	Recipient: netip.MustParseAddrPort("10.0.0.1:8125"),
}, {
	Name:       "requests",
	Value:      -1.5,
	SampleRate: sampleRate(0.1),
	Type:       statsd.CounterMetric,
}}

type fakeFileSystem struct {
	files map[string]*fakeFile
	t     *testing.T
}

type fakeFile struct {
	Builder *strings.Builder
}

func (fs fakeFileSystem) OpenFile(
	name string, flag int, perm os.FileMode,
) (localfile.File, error) {
	assert.Equal(fs.t, os.O_RDWR|os.O_APPEND|os.O_CREATE, flag)
	file, ok := fs.files[name]
	if !ok {
		file = &fakeFile{&strings.Builder{}}
		fs.files[name] = file
	}
	return file, nil
}

func (file *fakeFile) Close() error {
	return nil
}

func (file *fakeFile) Write(value []byte) (int, error) {
	return file.Builder.Write(value)
}

func newSink(t *testing.T, filesystem localfile.FileSystem) *localfile.LocalFileSink {
	sink := localfile.NewLocalFileSink(
		localfile.LocalFileSinkConfig{
			Delimiter: ',',
			FlushFile: "flush-file.csv",
		}, filesystem, "hostname", logrus.NewEntry(logrus.New()), "sink-name")
	sink.Now = func() time.Time {
		return time.Date(2016, 10, 10, 17, 4, 18, 0, time.UTC)
	}
	return sink
}

func TestName(t *testing.T) {
	sink := localfile.NewLocalFileSink(
		localfile.LocalFileSinkConfig{}, fakeFileSystem{}, "hostname",
		logrus.NewEntry(logrus.New()), "sink-name")
	assert.Equal(t, "sink-name", sink.Name())
}

func TestIngest(t *testing.T) {
	filesystem := fakeFileSystem{
		files: map[string]*fakeFile{},
		t:     t,
	}
	sink := newSink(t, filesystem)
	require.NoError(t, sink.Ingest(context.Background(), metrics))

	resultFile, ok := filesystem.files["flush-file.csv"]
	require.True(t, ok)
	gzipReader, err := gzip.NewReader(strings.NewReader(resultFile.Builder.String()))
	require.NoError(t, err)

	testhelpers.AssertReadersEqual(t, strings.NewReader(
		"a.b.c,gauge,100,,10.0.0.7:50312,10.0.0.1:8125,hostname,2016-10-10T17:04:18Z\n"+
			"requests,counter,-1.5,0.1,,,hostname,2016-10-10T17:04:18Z\n",
	), gzipReader)
}

func TestIngestAppends(t *testing.T) {
	filesystem := fakeFileSystem{
		files: map[string]*fakeFile{},
		t:     t,
	}
	sink := newSink(t, filesystem)
	require.NoError(t, sink.Ingest(context.Background(), metrics[:1]))
	require.NoError(t, sink.Ingest(context.Background(), metrics[1:]))

	// every batch is its own gzip member
	gzipReader, err := gzip.NewReader(
		strings.NewReader(filesystem.files["flush-file.csv"].Builder.String()))
	require.NoError(t, err)
	testhelpers.AssertReadersEqual(t, strings.NewReader(
		"a.b.c,gauge,100,,10.0.0.7:50312,10.0.0.1:8125,hostname,2016-10-10T17:04:18Z\n"+
			"requests,counter,-1.5,0.1,,,hostname,2016-10-10T17:04:18Z\n",
	), gzipReader)
}

func TestIngestEmptyBatch(t *testing.T) {
	filesystem := fakeFileSystem{
		files: map[string]*fakeFile{},
		t:     t,
	}
	sink := newSink(t, filesystem)
	require.NoError(t, sink.Ingest(context.Background(), nil))
	assert.Empty(t, filesystem.files)
}

type fakeFileSystemWriteError struct{}

type fakeFileWriteError struct{}

func (fs fakeFileSystemWriteError) OpenFile(
	name string, flag int, perm os.FileMode,
) (localfile.File, error) {
	return fakeFileWriteError{}, nil
}

func (file fakeFileWriteError) Close() error {
	return nil
}

func (file fakeFileWriteError) Write(value []byte) (int, error) {
	return 0, fmt.Errorf("this writer fails when you try to write")
}

func TestIngestWriteError(t *testing.T) {
	sink := newSink(t, fakeFileSystemWriteError{})
	require.Error(t, sink.Ingest(context.Background(), metrics))
}

func TestParseConfig(t *testing.T) {
	parsed, err := localfile.ParseConfig("sink-name", map[string]interface{}{
		"flush_file": "/tmp/metrics.csv.gz",
	})
	require.NoError(t, err)
	assert.Equal(t, localfile.LocalFileSinkConfig{
		Delimiter: '\t',
		FlushFile: "/tmp/metrics.csv.gz",
	}, parsed)

	parsed, err = localfile.ParseConfig("sink-name", map[string]interface{}{
		"delimiter":  ";",
		"flush_file": "/tmp/metrics.csv.gz",
	})
	require.NoError(t, err)
	assert.Equal(t, ';', rune(parsed.(localfile.LocalFileSinkConfig).Delimiter))

	_, err = localfile.ParseConfig("sink-name", map[string]interface{}{})
	assert.Error(t, err)
}

func TestIngestToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.tsv.gz")
	sink, err := localfile.Create(&statsdecoder.Server{
		Hostname: "hostname",
	}, "sink-name",
		logrus.NewEntry(logrus.New()), statsdecoder.Config{},
		localfile.LocalFileSinkConfig{
			Delimiter: '\t',
			FlushFile: path,
		})
	require.NoError(t, err)
	require.NoError(t, sink.Ingest(context.Background(), metrics))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	gzipReader, err := gzip.NewReader(file)
	require.NoError(t, err)
	var contents strings.Builder
	_, err = io.Copy(&contents, gzipReader)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(contents.String(), "a.b.c\tgauge\t100\t\t"))
}

func TestIngestToInvalidPath(t *testing.T) {
	sink, err := localfile.Create(&statsdecoder.Server{
		Hostname: "hostname",
	}, "sink-name",
		logrus.NewEntry(logrus.New()), statsdecoder.Config{},
		localfile.LocalFileSinkConfig{
			Delimiter: '\t',
			FlushFile: filepath.Join(t.TempDir(), "missing", "metrics.tsv.gz"),
		})
	require.NoError(t, err)
	assert.Error(t, sink.Ingest(context.Background(), metrics))
}
