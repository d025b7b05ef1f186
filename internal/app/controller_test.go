package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"filecast/internal/app"
	"filecast/internal/transport"
	mock_transport "filecast/internal/transport/mock"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/suite"
)

const (
	testChannel = "files-demo-channel"
	waitFor     = 2 * time.Second
	tick        = 5 * time.Millisecond
)

type stateRecorder struct {
	mux    sync.Mutex
	states []app.DownloadState
}

func (r *stateRecorder) record(s app.DownloadState) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) phases() []app.Phase {
	r.mux.Lock()
	defer r.mux.Unlock()
	phases := make([]app.Phase, 0, len(r.states))
	for _, s := range r.states {
		phases = append(phases, s.Phase)
	}
	return phases
}

type ControllerTestSuite struct {
	suite.Suite

	ctx        context.Context
	ctrl       *gomock.Controller
	client     *mock_transport.MockClient
	sub        *mock_transport.MockSubscription
	events     chan transport.FileEvent
	closeOnce  sync.Once
	recorder   *stateRecorder
	controller *app.Controller
}

func TestControllerTestSuite(t *testing.T) {
	suite.Run(t, new(ControllerTestSuite))
}

func (s *ControllerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.client = mock_transport.NewMockClient(s.ctrl)
	s.sub = mock_transport.NewMockSubscription(s.ctrl)
	s.events = make(chan transport.FileEvent, 4)
	s.closeOnce = sync.Once{}
	s.recorder = &stateRecorder{}
	s.controller = nil
}

func (s *ControllerTestSuite) TearDownTest() {
	if s.controller != nil {
		s.controller.Unmount()
		s.controller.Wait()
	}
	s.ctrl.Finish()
}

func (s *ControllerTestSuite) newController(opts ...app.Option) *app.Controller {
	opts = append([]app.Option{app.WithDownloadListener(s.recorder.record)}, opts...)
	s.controller = app.NewController(s.client, testChannel, map[string]int{"a": 1}, opts...)
	return s.controller
}

func (s *ControllerTestSuite) mount(opts ...app.Option) *app.Controller {
	c := s.newController(opts...)

	s.client.EXPECT().Subscribe(gomock.Any(), testChannel).Return(s.sub, nil)
	s.sub.EXPECT().Events().Return((<-chan transport.FileEvent)(s.events)).AnyTimes()
	s.sub.EXPECT().Close().DoAndReturn(func() error {
		s.closeOnce.Do(func() { close(s.events) })
		return nil
	}).Times(1)

	s.Require().NoError(c.Mount(s.ctx))
	return c
}

func (s *ControllerTestSuite) waitForPhase(phase app.Phase) app.DownloadState {
	s.Require().Eventually(func() bool {
		return s.controller.Snapshot().Phase == phase
	}, waitFor, tick)
	return s.controller.Snapshot()
}

func (s *ControllerTestSuite) TestInitialStateIsIdle() {
	c := s.newController()

	state := c.Snapshot()
	s.Equal(app.Idle, state.Phase)
	s.Equal("Waiting for file...", state.StatusText())
	s.Nil(state.Event)

	_, ok := c.LastUpload()
	s.False(ok)
	s.False(c.Uploading())
}

func (s *ControllerTestSuite) TestUploadSuccess() {
	var uploads []app.UploadResult
	c := s.newController(app.WithUploadListener(func(r app.UploadResult) { uploads = append(uploads, r) }))

	s.client.EXPECT().
		PublishFile(gomock.Any(), testChannel, gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, channel string, file transport.File, msg transport.Message) (transport.PublishResult, error) {
			s.Equal("sample-data.json", file.Name)
			s.Equal("application/json", file.MimeType)
			s.JSONEq(`{"a":1}`, string(file.Data))
			s.Equal("Sample JSON data file", msg.Text)
			s.Equal("files-demo-user", msg.Sender)
			s.True(c.Uploading())
			return transport.PublishResult{ID: "X", Name: "Y"}, nil
		})

	result := c.Upload(s.ctx)
	s.Equal(app.UploadResult{Success: true, ID: "X", Name: "Y"}, result)
	s.False(c.Uploading())

	last, ok := c.LastUpload()
	s.True(ok)
	s.Equal(result, last)
	s.Equal([]app.UploadResult{result}, uploads)
}

func (s *ControllerTestSuite) TestUploadFailure() {
	c := s.newController()

	s.client.EXPECT().
		PublishFile(gomock.Any(), testChannel, gomock.Any(), gomock.Any()).
		Return(transport.PublishResult{}, errors.New("quota exceeded"))

	result := c.Upload(s.ctx)
	s.Equal(app.UploadResult{Success: false, Error: "quota exceeded"}, result)
}

func (s *ControllerTestSuite) TestUploadResultReplacesPrevious() {
	c := s.newController()

	gomock.InOrder(
		s.client.EXPECT().PublishFile(gomock.Any(), testChannel, gomock.Any(), gomock.Any()).
			Return(transport.PublishResult{}, errors.New("network down")),
		s.client.EXPECT().PublishFile(gomock.Any(), testChannel, gomock.Any(), gomock.Any()).
			Return(transport.PublishResult{ID: "2", Name: "sample-data.json"}, nil),
	)

	s.False(c.Upload(s.ctx).Success)
	s.True(c.Upload(s.ctx).Success)

	last, _ := c.LastUpload()
	s.Equal(app.UploadResult{Success: true, ID: "2", Name: "sample-data.json"}, last)
}

func (s *ControllerTestSuite) TestUploadEncodingFailure() {
	s.controller = app.NewController(s.client, testChannel, make(chan int))

	result := s.controller.Upload(s.ctx)
	s.False(result.Success)
	s.NotEmpty(result.Error)
}

func (s *ControllerTestSuite) TestNotificationEntersLoadingBeforeDownloadResolves() {
	c := s.mount()

	release := make(chan struct{})
	var phaseDuringDownload app.Phase
	s.client.EXPECT().
		DownloadFile(gomock.Any(), testChannel, "F1", "N1").
		DoAndReturn(func(ctx context.Context, channel, id, name string) ([]byte, error) {
			phaseDuringDownload = c.Snapshot().Phase
			<-release
			return []byte(`{"a":1}`), nil
		})

	s.events <- transport.FileEvent{FileID: "F1", FileName: "N1", Publisher: "P"}

	state := s.waitForPhase(app.Loading)
	s.Equal("F1", state.Event.FileID)
	s.Equal("Downloading file...", state.StatusText())

	close(release)
	state = s.waitForPhase(app.Succeeded)

	s.Equal(app.Loading, phaseDuringDownload)
	s.Equal(map[string]any{"a": float64(1)}, state.Content)
	s.Equal([]byte(`{"a":1}`), state.Raw)
	s.Equal("File downloaded successfully:", state.StatusText())
	s.Equal([]app.Phase{app.Loading, app.Succeeded}, s.recorder.phases())
}

func (s *ControllerTestSuite) TestMalformedContentFails() {
	s.mount()

	s.client.EXPECT().
		DownloadFile(gomock.Any(), testChannel, "F1", "N1").
		Return([]byte(`{a:`), nil)

	s.events <- transport.FileEvent{FileID: "F1", FileName: "N1"}

	state := s.waitForPhase(app.Failed)
	s.NotEmpty(state.Error)
	s.Nil(state.Content)
	s.Contains(state.StatusText(), "Error downloading file: ")
}

func (s *ControllerTestSuite) TestDownloadFailureCarriesMessage() {
	s.mount()

	s.client.EXPECT().
		DownloadFile(gomock.Any(), testChannel, "F1", "N1").
		Return(nil, errors.New("file not found"))

	s.events <- transport.FileEvent{FileID: "F1", FileName: "N1"}

	state := s.waitForPhase(app.Failed)
	s.Equal("file not found", state.Error)
	s.Equal("Error downloading file: file not found", state.StatusText())
}

type silentError struct {
	Code int `json:"code"`
}

func (silentError) Error() string { return "" }

func (s *ControllerTestSuite) TestDownloadFailureWithoutMessageIsStringified() {
	s.mount()

	s.client.EXPECT().
		DownloadFile(gomock.Any(), testChannel, "F1", "N1").
		Return(nil, silentError{Code: 503})

	s.events <- transport.FileEvent{FileID: "F1", FileName: "N1"}

	state := s.waitForPhase(app.Failed)
	s.Equal(`{"code":503}`, state.Error)
}

func (s *ControllerTestSuite) TestNewNotificationReentersLoading() {
	s.mount()

	gomock.InOrder(
		s.client.EXPECT().DownloadFile(gomock.Any(), testChannel, "F1", "N1").Return(nil, errors.New("boom")),
		s.client.EXPECT().DownloadFile(gomock.Any(), testChannel, "F2", "N2").Return([]byte(`[1,2]`), nil),
	)

	s.events <- transport.FileEvent{FileID: "F1", FileName: "N1"}
	s.waitForPhase(app.Failed)

	s.events <- transport.FileEvent{FileID: "F2", FileName: "N2"}
	state := s.waitForPhase(app.Succeeded)

	s.Equal([]any{float64(1), float64(2)}, state.Content)
	s.Equal([]app.Phase{app.Loading, app.Failed, app.Loading, app.Succeeded}, s.recorder.phases())
}

func (s *ControllerTestSuite) TestLastCompletingDownloadWins() {
	s.mount()

	releaseFirst := make(chan struct{})
	s.client.EXPECT().
		DownloadFile(gomock.Any(), testChannel, "F1", "N1").
		DoAndReturn(func(ctx context.Context, channel, id, name string) ([]byte, error) {
			<-releaseFirst
			return []byte(`{"n":1}`), nil
		})
	s.client.EXPECT().
		DownloadFile(gomock.Any(), testChannel, "F2", "N2").
		Return([]byte(`{"n":2}`), nil)

	s.events <- transport.FileEvent{FileID: "F1", FileName: "N1"}
	s.events <- transport.FileEvent{FileID: "F2", FileName: "N2"}

	s.Require().Eventually(func() bool {
		state := s.controller.Snapshot()
		return state.Phase == app.Succeeded && state.Event.FileID == "F2"
	}, waitFor, tick)

	close(releaseFirst)
	s.Require().Eventually(func() bool {
		return s.controller.Snapshot().Event.FileID == "F1"
	}, waitFor, tick)
	s.Equal(map[string]any{"n": float64(1)}, s.controller.Snapshot().Content)
}

func (s *ControllerTestSuite) TestStaleDownloadDropped() {
	c := s.mount(app.WithStaleDownloadsDropped())

	releaseFirst := make(chan struct{})
	s.client.EXPECT().
		DownloadFile(gomock.Any(), testChannel, "F1", "N1").
		DoAndReturn(func(ctx context.Context, channel, id, name string) ([]byte, error) {
			<-releaseFirst
			return []byte(`{"n":1}`), nil
		})
	s.client.EXPECT().
		DownloadFile(gomock.Any(), testChannel, "F2", "N2").
		Return([]byte(`{"n":2}`), nil)

	s.events <- transport.FileEvent{FileID: "F1", FileName: "N1"}
	s.events <- transport.FileEvent{FileID: "F2", FileName: "N2"}

	s.Require().Eventually(func() bool {
		state := c.Snapshot()
		return state.Phase == app.Succeeded && state.Event.FileID == "F2"
	}, waitFor, tick)

	close(releaseFirst)
	c.Wait()

	state := c.Snapshot()
	s.Equal("F2", state.Event.FileID)
	s.Equal(map[string]any{"n": float64(2)}, state.Content)
}

func (s *ControllerTestSuite) TestDownloadCompletingAfterUnmountIsIgnored() {
	c := s.mount()

	release := make(chan struct{})
	s.client.EXPECT().
		DownloadFile(gomock.Any(), testChannel, "F1", "N1").
		DoAndReturn(func(ctx context.Context, channel, id, name string) ([]byte, error) {
			<-release
			s.NoError(ctx.Err())
			return []byte(`{"a":1}`), nil
		})

	s.events <- transport.FileEvent{FileID: "F1", FileName: "N1"}
	s.waitForPhase(app.Loading)

	s.Require().NoError(c.Unmount())
	close(release)
	c.Wait()

	s.Equal(app.Loading, c.Snapshot().Phase)
	s.Equal([]app.Phase{app.Loading}, s.recorder.phases())
}

func (s *ControllerTestSuite) TestMountTwice() {
	c := s.mount()
	s.ErrorIs(c.Mount(s.ctx), app.ErrAlreadyMounted)

	s.Require().NoError(c.Unmount())
	s.NoError(c.Unmount())
	s.ErrorIs(c.Mount(s.ctx), app.ErrAlreadyMounted)
}

func (s *ControllerTestSuite) TestUnmountWithoutMount() {
	c := s.newController()
	s.ErrorIs(c.Unmount(), app.ErrNotMounted)
}

func (s *ControllerTestSuite) TestSubscribeFailure() {
	c := s.newController()

	s.client.EXPECT().Subscribe(gomock.Any(), testChannel).Return(nil, errors.New("forbidden"))

	err := c.Mount(s.ctx)
	s.ErrorContains(err, "forbidden")
	s.Equal(app.Idle, c.Snapshot().Phase)
}
