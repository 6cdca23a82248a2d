package pod

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/annolab/tile-ingest/internal/config"
	"github.com/annolab/tile-ingest/pkg/metrics"
)

const namePrefix = "sat-project-"

// Name derives the deterministic pod name for a project.
func Name(id string) string {
	if strings.HasPrefix(id, namePrefix) {
		return id
	}
	return namePrefix + id
}

// ExecOptions controls ExecScript's entry mode.
type ExecOptions struct {
	// ForceRunPod stands the pod up first when it is not already running.
	ForceRunPod  bool
	InitTraining bool
	OnFinish     func(ctx context.Context) error
}

// Orchestrator manages the single training pod each project is allowed to
// have. A nil Kubernetes client makes every operation a no-op, for
// deployments without a configured cluster credential.
type Orchestrator struct {
	client      kubernetes.Interface
	execFactory ExecutorFactory

	namespace       string
	trainingImage   string
	imagePullSecret string
	baseEnv         []corev1.EnvVar

	retries  int
	interval time.Duration
	sleep    func(time.Duration)
}

type Option func(*Orchestrator)

// WithSleep substitutes the readiness-poll sleep, for deterministic tests.
func WithSleep(sleep func(time.Duration)) Option {
	return func(o *Orchestrator) {
		o.sleep = sleep
	}
}

func WithExecutorFactory(factory ExecutorFactory) Option {
	return func(o *Orchestrator) {
		o.execFactory = factory
	}
}

func NewOrchestrator(client kubernetes.Interface, cfg *config.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:          client,
		namespace:       cfg.Service.Kube.Namespace,
		trainingImage:   cfg.Service.Kube.TrainingImage,
		imagePullSecret: cfg.Service.Kube.TrainingImageSecret,
		baseEnv:         baseEnv(cfg),
		retries:         cfg.Service.PodReadinessRetries,
		interval:        cfg.Service.PodReadinessInterval,
		sleep:           time.Sleep,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// baseEnv assembles the connection settings the training workload needs to
// reach storage, the queue and the pub-sub hub.
func baseEnv(cfg *config.Config) []corev1.EnvVar {
	return []corev1.EnvVar{
		{Name: "STORAGE_ENDPOINT", Value: cfg.Service.S3.Endpoint},
		{Name: "STORAGE_ACCESS_KEY", Value: cfg.Service.S3.AccessKey},
		{Name: "STORAGE_SECRET_KEY", Value: cfg.Service.S3.SecretKey},
		{Name: "DATASET_CONTAINER_NAME", Value: cfg.Service.S3.DatasetBucket},
		{Name: "PUBLIC_CONTAINER_NAME", Value: cfg.Service.S3.PublicBucket},
		{Name: "ORIGINAL_CONTAINER_NAME", Value: cfg.Service.S3.OriginalBucket},
		{Name: "IMPORT_MODEL_CONTAINER_NAME", Value: cfg.Service.S3.ImportModelBucket},
		{Name: "EXPORT_MODEL_CONTAINER_NAME", Value: cfg.Service.S3.ExportModelBucket},
		{Name: "QUEUE_CONNECTION_STRING", Value: cfg.Service.Queue.ConnectionString},
		{Name: "PUB_SUB_CONNECTION_STRING", Value: cfg.Service.PubSub.ConnectionString},
		{Name: "PUB_SUB_HUB_NAME", Value: cfg.Service.PubSub.HubName},
		{Name: "BACKEND_URL", Value: cfg.Service.BackendUrl},
	}
}

// Get fetches the project's pod. A missing pod is not an error; it returns
// (nil, nil).
func (o *Orchestrator) Get(ctx context.Context, id string) (*corev1.Pod, error) {
	if o.client == nil {
		return nil, nil
	}

	pod, err := o.client.CoreV1().Pods(o.namespace).Get(ctx, Name(id), metav1.GetOptions{})
	if err != nil {
		if k8serrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return pod, nil
}

// Create declares the training pod: GPU-capable scheduling, never-restart
// policy, and the environment vector the workload expects.
func (o *Orchestrator) Create(ctx context.Context, id string, extraEnv []corev1.EnvVar) (*corev1.Pod, error) {
	if o.client == nil {
		return nil, nil
	}

	name := Name(id)
	env := make([]corev1.EnvVar, 0, len(o.baseEnv)+len(extraEnv)+1)
	env = append(env, o.baseEnv...)
	env = append(env, corev1.EnvVar{Name: "PROJECT_ID", Value: id})
	env = append(env, extraEnv...)

	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
		},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{
				{
					Name:  name,
					Image: o.trainingImage,
					Resources: corev1.ResourceRequirements{
						Requests: corev1.ResourceList{
							corev1.ResourceMemory: resource.MustParse("1Gi"),
						},
					},
					Env: env,
				},
			},
			NodeSelector:  map[string]string{"type": "gpu"},
			RestartPolicy: corev1.RestartPolicyNever,
			ImagePullSecrets: []corev1.LocalObjectReference{
				{Name: o.imagePullSecret},
			},
		},
	}

	return o.client.CoreV1().Pods(o.namespace).Create(ctx, pod, metav1.CreateOptions{})
}

// Delete removes the project's pod. A missing pod counts as success.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	if o.client == nil {
		return nil
	}

	err := o.client.CoreV1().Pods(o.namespace).Delete(ctx, Name(id), metav1.DeleteOptions{})
	if err != nil {
		if k8serrors.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("delete pod %s: %w", Name(id), err)
	}
	return nil
}

// CreateOrUpdate reconciles toward exactly one non-finished pod per project:
// an alive pod is returned unchanged, a finished one is replaced, a missing
// one is created.
func (o *Orchestrator) CreateOrUpdate(ctx context.Context, id string, extraEnv []corev1.EnvVar) (*corev1.Pod, error) {
	if o.client == nil {
		return nil, nil
	}

	pod, err := o.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if pod != nil && !PodPhase(pod).Finished() {
		return pod, nil
	}

	if pod != nil {
		if err := o.Delete(ctx, id); err != nil {
			return nil, err
		}
	}

	return o.Create(ctx, id, extraEnv)
}

// ExecScript runs a script inside the project's pod. Without ForceRunPod the
// call silently does nothing unless the pod is already running. With
// ForceRunPod the pod is reconciled first and polled until running; a pod
// that never gets there within the retry budget downgrades the call to a
// logged no-op.
func (o *Orchestrator) ExecScript(ctx context.Context, id string, script Script, action ActionType, args []string, onStatus StatusFunc, opts *ExecOptions) error {
	if o.client == nil {
		return nil
	}
	if opts == nil {
		opts = &ExecOptions{InitTraining: true}
	}

	pod, err := o.Get(ctx, id)
	if err != nil {
		return err
	}
	running := pod != nil && PodPhase(pod).Running()

	if !opts.ForceRunPod && !running {
		return nil
	}

	if opts.ForceRunPod && !running {
		initTraining := "FALSE"
		if opts.InitTraining {
			initTraining = "TRUE"
		}
		if _, err := o.CreateOrUpdate(ctx, id, []corev1.EnvVar{{Name: "INIT_TRAINING", Value: initTraining}}); err != nil {
			return err
		}

		for attempt := 0; attempt <= o.retries && !running; attempt++ {
			if attempt > 0 {
				o.sleep(o.interval)
			}
			pod, err = o.Get(ctx, id)
			if err != nil {
				return err
			}
			running = pod != nil && PodPhase(pod).Running()
		}

		if !running {
			zap.S().Named("pod").Warnf("pod %s never reached running state, skipping exec", Name(id))
			return nil
		}
	}

	command := []string{interpreter, string(script), string(action)}
	if len(args) > 0 {
		command = append(command, strings.Join(args, ","))
	}

	zap.S().Named("pod").Infof("start exec %s for %s", action, id)
	metrics.IncreasePodExecsMetric(string(action))
	executor, err := o.execFactory(o.namespace, Name(id), command)
	if err != nil {
		return err
	}

	stdout := statusWriter{stream: "stdout", fn: onStatus}
	stderr := statusWriter{stream: "stderr", fn: onStatus}
	if err := executor.Stream(ctx, stdout, stderr); err != nil {
		return err
	}

	if opts.OnFinish != nil {
		return opts.OnFinish(ctx)
	}
	return nil
}
