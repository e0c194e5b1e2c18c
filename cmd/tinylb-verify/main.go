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

// tinylb-verify runs the tinylb integration scenario against a live
// cluster: it creates a Gateway, a backend, a LoadBalancer Service
// and an HTTPRoute, waits for tinylb to materialize the Route and
// program the Gateway, checks the cross-resource invariants, and
// reports a step-by-step verdict.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/bombsimon/logrusr/v4"
	"github.com/sirupsen/logrus"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/tinylb/verify/internal/scenario"
	"github.com/tinylb/verify/internal/verify"
)

func main() {
	log := logrus.StandardLogger()

	app := kingpin.New("tinylb-verify", "Integration verification suite for the tinylb controller.")
	kubeconfig := app.Flag("kubeconfig", "Path to kubeconfig (defaults to standard loading rules).").String()
	inCluster := app.Flag("incluster", "Use in-cluster configuration.").Bool()
	namespace := app.Flag("namespace", "Namespace to run the scenario in.").Default("gateway-api-test").String()
	gatewayName := app.Flag("gateway", "Name of the test Gateway.").Default("test-gateway").String()
	gatewayClass := app.Flag("gateway-class", "Gateway class the test Gateway requests.").Default("istio").String()
	interval := app.Flag("poll-interval", "Interval between convergence checks.").Default("2s").Duration()
	timeout := app.Flag("poll-timeout", "Deadline for each convergence wait.").Default("120s").Duration()
	noClean := app.Flag("noclean", "Do not delete test resources after the run (useful for debugging).").Bool()
	noProbe := app.Flag("no-http-probe", "Skip the end-to-end HTTP request.").Bool()
	debug := app.Flag("debug", "Enable debug logging.").Bool()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if *debug {
		log.SetLevel(logrus.DebugLevel)
	}
	ctrl.SetLogger(logrusr.New(log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := verify.NewFramework(verify.Options{
		Kubeconfig:    *kubeconfig,
		InCluster:     *inCluster,
		Log:           log,
		RetryInterval: *interval,
		RetryTimeout:  *timeout,
	})
	if err != nil {
		log.WithError(err).Error("failed to set up cluster access")
		os.Exit(1)
	}

	log.Info("checking prerequisites")
	if err := f.CheckPrerequisites(ctx); err != nil {
		log.WithError(err).Error("prerequisites not met")
		os.Exit(1)
	}

	log.WithField("namespace", *namespace).Info("ensuring test namespace")
	if err := f.EnsureNamespace(ctx, *namespace); err != nil {
		log.WithError(err).Error("failed to create test namespace")
		os.Exit(1)
	}

	pipeline := f.BuildPipeline(verify.ScenarioConfig{
		Namespace:     *namespace,
		GatewayName:   *gatewayName,
		GatewayClass:  *gatewayClass,
		SkipHTTPProbe: *noProbe,
		SkipCleanup:   *noClean,
	})

	result := pipeline.Run(ctx)
	printSummary(log, result)

	if *noClean {
		log.WithField("namespace", *namespace).Warn("test resources left behind; delete the namespace to clean up manually")
	}

	if !result.Passed {
		os.Exit(1)
	}
}

func printSummary(log logrus.FieldLogger, result scenario.Result) {
	log.Info("scenario summary:")
	for _, step := range result.Steps {
		entry := log.WithFields(logrus.Fields{
			"step":     step.Name,
			"duration": step.Duration.Round(time.Millisecond),
		})
		switch {
		case step.Skipped:
			entry.Info("SKIPPED")
		case step.Passed:
			entry.Info("PASSED")
		default:
			entry.Error("FAILED")
			for _, diag := range step.Diagnostics {
				log.WithField("step", step.Name).Errorf("  - %s", diag)
			}
		}
	}

	if result.Passed {
		log.Info("integration scenario PASSED")
		return
	}
	log.Error(fmt.Sprintf("integration scenario FAILED at %s: %s", result.FailedStep, result.Reason))
}
