// Copyright Project TinyLB Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fetch wraps the Kubernetes client with the access contract
// the suite's polling engine relies on: "not found" is an explicit
// absent result, never an error, and every other fault propagates
// untouched. Retry policy lives entirely in the poll package; nothing
// here retries.
package fetch

import (
	"context"
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Fetcher is a thin, kind-agnostic accessor over the API server. One
// Fetcher serves every resource kind the suite touches; the scheme on
// the underlying client decides what it can decode.
type Fetcher struct {
	client client.Client
}

// New returns a Fetcher backed by the given client.
func New(c client.Client) *Fetcher {
	return &Fetcher{client: c}
}

// ConflictError reports a non-idempotent create against an object
// that already exists.
type ConflictError struct {
	Key client.ObjectKey

	err error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("object %s already exists", e.Key)
}

func (e *ConflictError) Unwrap() error { return e.err }

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// Get reads the object identified by key into obj. It returns
// (false, nil) when the object does not exist and (true, nil) when it
// does; any other API fault is returned as-is.
func (f *Fetcher) Get(ctx context.Context, key client.ObjectKey, obj client.Object) (bool, error) {
	if err := f.client.Get(ctx, key, obj); err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Create creates obj, failing with a ConflictError if it already
// exists.
func (f *Fetcher) Create(ctx context.Context, obj client.Object) error {
	if err := f.client.Create(ctx, obj); err != nil {
		if apierrors.IsAlreadyExists(err) {
			return &ConflictError{Key: client.ObjectKeyFromObject(obj), err: err}
		}
		return err
	}
	return nil
}

// Ensure creates obj if it does not exist and succeeds quietly if it
// already does. Used for setup objects the scenario may share with a
// previous, uncleaned run.
func (f *Fetcher) Ensure(ctx context.Context, obj client.Object) error {
	err := f.client.Create(ctx, obj)
	if err != nil && !apierrors.IsAlreadyExists(err) {
		return err
	}
	return nil
}

// Delete removes obj, treating "already gone" as success.
func (f *Fetcher) Delete(ctx context.Context, obj client.Object) error {
	if err := f.client.Delete(ctx, obj); err != nil && !apierrors.IsNotFound(err) {
		return err
	}
	return nil
}

// List fills list with objects in namespace matching the given
// labels. An empty namespace lists across the cluster; nil labels
// list everything.
func (f *Fetcher) List(ctx context.Context, list client.ObjectList, namespace string, matching map[string]string) error {
	opts := []client.ListOption{}
	if namespace != "" {
		opts = append(opts, client.InNamespace(namespace))
	}
	if len(matching) > 0 {
		opts = append(opts, client.MatchingLabels(matching))
	}
	return f.client.List(ctx, list, opts...)
}

// Patch applies patch to obj and leaves the patched snapshot in obj.
// Every fault propagates untouched, NotFound included: patching an
// absent object is a caller mistake, not an expected transient, so it
// is not absorbed the way Get absorbs absence.
func (f *Fetcher) Patch(ctx context.Context, obj client.Object, patch client.Patch) error {
	return f.client.Patch(ctx, obj, patch)
}
