package pod

import (
	"context"
	"io"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"
)

// Script identifies an executable shipped inside the training image.
type Script string

const (
	ScriptInference Script = "scripts/inference.py"
)

// ActionType selects the inference action passed to the script.
type ActionType string

const (
	ActionPredict   ActionType = "predict"
	ActionSuggest   ActionType = "suggest"
	ActionCalculate ActionType = "calculate"
)

const interpreter = "python3.10"

// StatusFunc receives streamed output chunks from a remote command.
type StatusFunc func(stream string, output []byte)

// Executor runs a prepared remote command and streams its output.
type Executor interface {
	Stream(ctx context.Context, stdout, stderr io.Writer) error
}

// ExecutorFactory builds an Executor for a command targeting one pod. It is
// injected so tests can substitute the SPDY transport.
type ExecutorFactory func(namespace, podName string, command []string) (Executor, error)

// NewSPDYExecutorFactory wires remote execution through the Kubernetes exec
// subresource over SPDY.
func NewSPDYExecutorFactory(client kubernetes.Interface, restCfg *rest.Config) ExecutorFactory {
	return func(namespace, podName string, command []string) (Executor, error) {
		req := client.CoreV1().RESTClient().Post().
			Resource("pods").
			Namespace(namespace).
			Name(podName).
			SubResource("exec").
			VersionedParams(&corev1.PodExecOptions{
				Command: command,
				Stdout:  true,
				Stderr:  true,
				TTY:     true,
			}, scheme.ParameterCodec)

		exec, err := remotecommand.NewSPDYExecutor(restCfg, "POST", req.URL())
		if err != nil {
			return nil, err
		}
		return &spdyExecutor{exec: exec}, nil
	}
}

type spdyExecutor struct {
	exec remotecommand.Executor
}

func (e *spdyExecutor) Stream(ctx context.Context, stdout, stderr io.Writer) error {
	return e.exec.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdout: stdout,
		Stderr: stderr,
		Tty:    true,
	})
}

type statusWriter struct {
	stream string
	fn     StatusFunc
}

func (w statusWriter) Write(p []byte) (int, error) {
	if w.fn != nil {
		w.fn(w.stream, append([]byte(nil), p...))
	}
	return len(p), nil
}
