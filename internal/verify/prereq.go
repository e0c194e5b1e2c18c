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

package verify

import (
	"context"
	"fmt"
	"strings"

	routev1 "github.com/openshift/api/route/v1"
	appsv1 "k8s.io/api/apps/v1"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/tinylb/verify/internal/check"
)

// ControllerNamespace is where the tinylb deployment is expected to
// run.
const ControllerNamespace = "tinylb-system"

// CheckPrerequisites verifies the cluster can host the scenario at
// all: the tinylb deployment (when present) is ready, the Gateway API
// CRDs are installed, and the OpenShift Routes API is served. A
// missing tinylb deployment is only a warning since tinylb may be
// deployed between this check and the run; anything else failing is a
// setup fault that aborts before any polling begins.
func (f *Framework) CheckPrerequisites(ctx context.Context) error {
	if err := f.checkController(ctx); err != nil {
		return err
	}
	if err := f.checkGatewayCRDs(ctx); err != nil {
		return err
	}
	return f.checkRoutesAPI(ctx)
}

func (f *Framework) checkController(ctx context.Context) error {
	deployments := &appsv1.DeploymentList{}
	if err := f.Fetcher.List(ctx, deployments, ControllerNamespace, nil); err != nil {
		return fmt.Errorf("listing deployments in %s: %w", ControllerNamespace, err)
	}

	for i := range deployments.Items {
		d := &deployments.Items[i]
		if !strings.Contains(d.Name, "tinylb") {
			continue
		}
		if !check.DeploymentReady(d) {
			return fmt.Errorf("tinylb deployment %s/%s is not ready", d.Namespace, d.Name)
		}
		f.Log.WithField("deployment", d.Name).Info("tinylb deployment is ready")
		return nil
	}

	f.Log.Warn("tinylb deployment not found; assuming it is deployed separately")
	return nil
}

func (f *Framework) checkGatewayCRDs(ctx context.Context) error {
	crds := &apiextensionsv1.CustomResourceDefinitionList{}
	if err := f.Fetcher.List(ctx, crds, "", nil); err != nil {
		return fmt.Errorf("listing CRDs: %w", err)
	}

	found := 0
	for _, crd := range crds.Items {
		if strings.Contains(crd.Name, "gateway") {
			found++
		}
	}
	if found < 2 {
		return fmt.Errorf("found %d Gateway API CRDs, need at least 2", found)
	}
	f.Log.WithField("count", found).Info("Gateway API CRDs present")
	return nil
}

func (f *Framework) checkRoutesAPI(ctx context.Context) error {
	routes := &routev1.RouteList{}
	if err := f.Client.List(ctx, routes, client.Limit(1)); err != nil {
		return fmt.Errorf("OpenShift Routes API not available: %w", err)
	}
	f.Log.Info("OpenShift Routes API is available")
	return nil
}
