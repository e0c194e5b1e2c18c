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

//go:build e2e

package e2e

import (
	"context"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/tinylb/verify/internal/verify"
)

const testNamespace = "gateway-api-test"

var f *verify.Framework

func TestTinyLB(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "TinyLB integration suite")
}

var _ = BeforeSuite(func() {
	var err error
	f, err = verify.NewFramework(verify.Options{
		Kubeconfig: os.Getenv("TINYLB_E2E_KUBECONFIG"),
		Log:        logrus.StandardLogger(),
	})
	Expect(err).NotTo(HaveOccurred())

	Expect(f.CheckPrerequisites(context.Background())).To(Succeed())
	Expect(f.EnsureNamespace(context.Background(), testNamespace)).To(Succeed())
})

var _ = AfterSuite(func() {
	if f == nil {
		return
	}
	if os.Getenv("TINYLB_E2E_NOCLEAN") != "" {
		logrus.Warnf("leaving test resources in namespace %s", testNamespace)
		return
	}
	Expect(f.Fetcher.Delete(context.Background(), verify.Namespace(testNamespace))).To(Succeed())
})
