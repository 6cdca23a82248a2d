package pod

import (
	corev1 "k8s.io/api/core/v1"
)

// Phase is the observed lifecycle phase of a training pod.
type Phase string

const (
	PhasePending     Phase = "Pending"
	PhaseRunning     Phase = "Running"
	PhaseSucceeded   Phase = "Succeeded"
	PhaseCompleted   Phase = "Completed"
	PhaseFailed      Phase = "Failed"
	PhaseError       Phase = "Error"
	PhaseTerminating Phase = "Terminating"
	PhaseUnknown     Phase = "Unknown"
)

// Finished reports whether the pod can no longer be reused and must be
// replaced before running another workload.
func (p Phase) Finished() bool {
	switch p {
	case PhaseSucceeded, PhaseCompleted, PhaseFailed, PhaseError, PhaseTerminating, PhaseUnknown:
		return true
	}
	return false
}

// Running reports whether the pod is usable for exec.
func (p Phase) Running() bool {
	return p == PhaseRunning
}

// PodPhase maps a pod object to its lifecycle phase. A pod with a deletion
// timestamp counts as terminating regardless of its reported phase.
func PodPhase(pod *corev1.Pod) Phase {
	if pod == nil {
		return PhaseUnknown
	}
	if pod.DeletionTimestamp != nil {
		return PhaseTerminating
	}
	return Phase(pod.Status.Phase)
}
