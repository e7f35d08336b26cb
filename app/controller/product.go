package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-inventory/app/dto"
	"github.com/vibast-solutions/ms-go-inventory/app/middleware"
	"github.com/vibast-solutions/ms-go-inventory/app/service"
	"github.com/vibast-solutions/ms-go-inventory/app/types"
)

type ProductController struct {
	products service.ProductService
}

func NewProductController(products service.ProductService) *ProductController {
	return &ProductController{products: products}
}

func (c *ProductController) Create(ctx echo.Context) error {
	actor := middleware.CurrentUser(ctx)
	if actor == nil {
		return dto.Error(ctx, http.StatusUnauthorized, "unauthorized request")
	}

	req, err := types.NewCreateProductRequestFromContext(ctx)
	if err != nil {
		return invalidBody(ctx, err, "Create product")
	}
	if err = req.Validate(); err != nil {
		return badRequest(ctx, err, "Create product")
	}

	product, err := c.products.Create(ctx.Request().Context(), actor, req)
	if err != nil {
		return respondError(ctx, err, "Create product", logrus.Fields{"user_id": actor.ID})
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    actor.ID,
		"product_id": product.ID,
	}).Info("Product created")
	return dto.JSON(ctx, http.StatusCreated, product, "product created successfully")
}

func (c *ProductController) List(ctx echo.Context) error {
	req, err := listRequest(ctx, "List products")
	if req == nil {
		return err
	}

	page, err := c.products.List(ctx.Request().Context(), req)
	if err != nil {
		return respondError(ctx, err, "List products", nil)
	}
	return dto.JSON(ctx, http.StatusOK, page, "products fetched successfully")
}

func (c *ProductController) ListMine(ctx echo.Context) error {
	actor := middleware.CurrentUser(ctx)
	if actor == nil {
		return dto.Error(ctx, http.StatusUnauthorized, "unauthorized request")
	}

	req, err := listRequest(ctx, "List own products")
	if req == nil {
		return err
	}

	page, err := c.products.ListMine(ctx.Request().Context(), actor, req)
	if err != nil {
		return respondError(ctx, err, "List own products", logrus.Fields{"user_id": actor.ID})
	}
	return dto.JSON(ctx, http.StatusOK, page, "products fetched successfully")
}

func (c *ProductController) Search(ctx echo.Context) error {
	req, err := listRequest(ctx, "Search products")
	if req == nil {
		return err
	}

	page, err := c.products.Search(ctx.Request().Context(), req)
	if err != nil {
		return respondError(ctx, err, "Search products", logrus.Fields{"query": req.Query})
	}
	return dto.JSON(ctx, http.StatusOK, page, "products fetched successfully")
}

func (c *ProductController) Get(ctx echo.Context) error {
	id, err := types.ProductIDFromContext(ctx)
	if err != nil {
		return badRequest(ctx, err, "Get product")
	}

	product, err := c.products.Get(ctx.Request().Context(), id)
	if err != nil {
		return respondError(ctx, err, "Get product", logrus.Fields{"product_id": id})
	}
	return dto.JSON(ctx, http.StatusOK, product, "product fetched successfully")
}

func (c *ProductController) Update(ctx echo.Context) error {
	actor := middleware.CurrentUser(ctx)
	if actor == nil {
		return dto.Error(ctx, http.StatusUnauthorized, "unauthorized request")
	}

	req, err := types.NewUpdateProductRequestFromContext(ctx)
	if err != nil {
		return badRequest(ctx, err, "Update product")
	}
	if err = req.Validate(); err != nil {
		return badRequest(ctx, err, "Update product")
	}

	product, err := c.products.Update(ctx.Request().Context(), actor, req)
	if err != nil {
		return respondError(ctx, err, "Update product", logrus.Fields{
			"user_id":    actor.ID,
			"product_id": req.ID,
		})
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    actor.ID,
		"product_id": product.ID,
	}).Info("Product updated")
	return dto.JSON(ctx, http.StatusOK, product, "product updated successfully")
}

func (c *ProductController) Delete(ctx echo.Context) error {
	actor := middleware.CurrentUser(ctx)
	if actor == nil {
		return dto.Error(ctx, http.StatusUnauthorized, "unauthorized request")
	}

	id, err := types.ProductIDFromContext(ctx)
	if err != nil {
		return badRequest(ctx, err, "Delete product")
	}

	if err = c.products.Delete(ctx.Request().Context(), actor, id); err != nil {
		return respondError(ctx, err, "Delete product", logrus.Fields{
			"user_id":    actor.ID,
			"product_id": id,
		})
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    actor.ID,
		"product_id": id,
	}).Info("Product deleted")
	return dto.JSON(ctx, http.StatusOK, nil, "product deleted successfully")
}

// listRequest returns a nil request when it has already written the 400 response.
func listRequest(ctx echo.Context, action string) (*types.ListProductsRequest, error) {
	req, err := types.NewListProductsRequestFromContext(ctx)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		return nil, badRequest(ctx, err, action)
	}
	return req, nil
}
