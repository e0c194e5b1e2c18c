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

package fetch

import (
	"context"
	"testing"

	routev1 "github.com/openshift/api/route/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

func newScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	require.NoError(t, corev1.AddToScheme(scheme))
	require.NoError(t, routev1.AddToScheme(scheme))
	return scheme
}

func newFetcher(t *testing.T, objs ...client.Object) *Fetcher {
	t.Helper()
	return New(fake.NewClientBuilder().
		WithScheme(newScheme(t)).
		WithObjects(objs...).
		Build())
}

func TestGetFound(t *testing.T) {
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "svc-a"},
	}
	f := newFetcher(t, svc)

	got := &corev1.Service{}
	ok, err := f.Get(context.Background(), client.ObjectKey{Namespace: "default", Name: "svc-a"}, got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "svc-a", got.Name)
}

func TestGetAbsentIsNotAnError(t *testing.T) {
	f := newFetcher(t)

	got := &routev1.Route{}
	ok, err := f.Get(context.Background(), client.ObjectKey{Namespace: "default", Name: "tinylb-svc-a"}, got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateConflict(t *testing.T) {
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "svc-a"},
	}
	f := newFetcher(t, svc)

	// The fake client's WithObjects stamps a resourceVersion onto svc;
	// clear it so Create reaches the AlreadyExists path instead of being
	// rejected for carrying a resourceVersion.
	dup := svc.DeepCopy()
	dup.ResourceVersion = ""
	err := f.Create(context.Background(), dup)
	require.Error(t, err)
	assert.True(t, IsConflict(err))

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, client.ObjectKey{Namespace: "default", Name: "svc-a"}, conflict.Key)
}

func TestPatchUpdatesObject(t *testing.T) {
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "svc-a"},
	}
	f := newFetcher(t, svc)

	updated := svc.DeepCopy()
	updated.Labels = map[string]string{"tinylb.io/managed": "true"}
	require.NoError(t, f.Patch(context.Background(), updated, client.MergeFrom(svc)))

	got := &corev1.Service{}
	ok, err := f.Get(context.Background(), client.ObjectKeyFromObject(svc), got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "true", got.Labels["tinylb.io/managed"])
}

func TestPatchAbsentPropagatesNotFound(t *testing.T) {
	f := newFetcher(t)

	missing := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "ghost"},
	}
	err := f.Patch(context.Background(), missing, client.MergeFrom(missing.DeepCopy()))
	require.Error(t, err)
	assert.True(t, apierrors.IsNotFound(err))
}

func TestEnsureIsIdempotent(t *testing.T) {
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "svc-a"},
	}
	f := newFetcher(t)

	require.NoError(t, f.Ensure(context.Background(), svc.DeepCopy()))
	require.NoError(t, f.Ensure(context.Background(), svc.DeepCopy()))

	ok, err := f.Get(context.Background(), client.ObjectKeyFromObject(svc), &corev1.Service{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteToleratesAbsence(t *testing.T) {
	f := newFetcher(t)

	route := &routev1.Route{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "tinylb-svc-a"},
	}
	require.NoError(t, f.Delete(context.Background(), route))
}

func TestListWithLabels(t *testing.T) {
	managed := &routev1.Route{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: "default",
			Name:      "tinylb-svc-a",
			Labels:    map[string]string{"tinylb.io/managed": "true"},
		},
	}
	unmanaged := &routev1.Route{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "handmade"},
	}
	f := newFetcher(t, managed, unmanaged)

	routes := &routev1.RouteList{}
	require.NoError(t, f.List(context.Background(), routes, "default", map[string]string{"tinylb.io/managed": "true"}))
	require.Len(t, routes.Items, 1)
	assert.Equal(t, "tinylb-svc-a", routes.Items[0].Name)
}
